package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTitle    = "Report"
	defaultMarginMm = 10.0
	defaultCompress = true
)

var optionsValidator = validator.New()

// NormalizeOptions applies defaults to unset options.
func NormalizeOptions(opts Options) Options {
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	opts.Orientation = Orientation(strings.ToLower(strings.TrimSpace(string(opts.Orientation))))
	if opts.Orientation == "" {
		opts.Orientation = OrientationPortrait
	}
	opts.PageFormat = PageFormat(strings.ToLower(strings.TrimSpace(string(opts.PageFormat))))
	if opts.PageFormat == "" {
		opts.PageFormat = PageFormatA4
	}
	if !opts.MarginSet && opts.MarginMm == 0 {
		opts.MarginMm = defaultMarginMm
	}
	if opts.Compress == nil {
		compress := defaultCompress
		opts.Compress = &compress
	}
	return opts
}

// ValidateOptions normalizes and validates options.
func ValidateOptions(opts Options) (Options, error) {
	opts = NormalizeOptions(opts)
	if err := optionsValidator.Struct(opts); err != nil {
		return Options{}, NewError(KindValidation, describeValidation(err), err)
	}
	return opts, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid export options"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return "invalid export options: " + strings.Join(parts, "; ")
}
