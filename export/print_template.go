package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/flosch/pongo2/v6"
)

// PrintTemplateName is the template used to compose print documents.
const PrintTemplateName = "print"

const defaultPrintTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ page.Title }}</title>
{% if page.BaseURL %}<base href="{{ page.BaseURL }}">
{% endif %}{% for sheet in page.Stylesheets %}{% if sheet.Href %}<link rel="stylesheet" href="{{ sheet.Href }}">
{% else %}<style>{{ sheet.Content|safe }}</style>
{% endif %}{% endfor %}</head>
<body>
{{ page.Markup|safe }}
</body>
</html>
`

// TemplateExecutor renders named templates.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// PrintPage is the data handed to the print template.
type PrintPage struct {
	Title       string
	BaseURL     string
	Markup      string
	Stylesheets []Stylesheet
	GeneratedAt time.Time
}

// PongoExecutor executes pongo2 templates compiled from source strings.
type PongoExecutor struct {
	templates map[string]*pongo2.Template
}

// NewPongoExecutor compiles templates keyed by name.
func NewPongoExecutor(sources map[string]string) (*PongoExecutor, error) {
	templates := make(map[string]*pongo2.Template, len(sources))
	for name, source := range sources {
		tpl, err := pongo2.FromString(source)
		if err != nil {
			return nil, fmt.Errorf("compile template %q: %w", name, err)
		}
		templates[name] = tpl
	}
	return &PongoExecutor{templates: templates}, nil
}

// DefaultPrintExecutor returns an executor holding the built-in print template.
func DefaultPrintExecutor() *PongoExecutor {
	return &PongoExecutor{templates: map[string]*pongo2.Template{
		PrintTemplateName: pongo2.Must(pongo2.FromString(defaultPrintTemplate)),
	}}
}

// ExecuteTemplate renders name with data exposed as "page".
func (e *PongoExecutor) ExecuteTemplate(w io.Writer, name string, data any) error {
	tpl, ok := e.templates[name]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("template %q not found", name), nil)
	}
	return tpl.ExecuteWriter(pongo2.Context{"page": data}, w)
}

func composePrintDocument(executor TemplateExecutor, page PrintPage) (string, error) {
	var buf bytes.Buffer
	if err := executor.ExecuteTemplate(&buf, PrintTemplateName, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}
