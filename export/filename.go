package export

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	filenameDateLayout = "2006-01-02"
	fallbackSlug       = "report"
)

// Slugify lowercases title, strips diacritics, joins whitespace runs with "_"
// and drops characters that are unsafe in filenames.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = sb.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			if pendingSep {
				sb.WriteByte('_')
				pendingSep = false
			}
			sb.WriteRune(r)
		}
	}

	slug := strings.Trim(sb.String(), "._")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// BuildFilename returns <slug(title)>_<yyyy-MM-dd>.<ext>.
func BuildFilename(title string, format Format, now time.Time) string {
	name := Slugify(title) + "_" + now.Format(filenameDateLayout)
	if ext := format.Extension(); ext != "" {
		name += "." + ext
	}
	return name
}

// resolveFilename keeps an explicit filename, adding the format extension
// when missing.
func resolveFilename(explicit, title string, format Format, now time.Time) string {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		return BuildFilename(title, format, now)
	}
	ext := format.Extension()
	if ext != "" && !strings.HasSuffix(strings.ToLower(explicit), "."+ext) {
		explicit += "." + ext
	}
	return explicit
}
