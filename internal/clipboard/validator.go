// Package clipboard picks a download URL out of the system clipboard.
package clipboard

import (
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

const maxURLLength = 2048

// Validator accepts only absolute http(s) URLs.
type Validator struct {
	allowedSchemes map[string]bool
}

func NewValidator() *Validator {
	return &Validator{
		allowedSchemes: map[string]bool{"http": true, "https": true},
	}
}

// ExtractURL returns the first valid URL in text, or "" if there is none.
// Pasted text often carries a title line or trailing whitespace around the
// link, so each whitespace-separated token is tried in turn.
func (v *Validator) ExtractURL(text string) string {
	for _, token := range strings.Fields(text) {
		if u := v.validate(token); u != "" {
			return u
		}
	}
	return ""
}

func (v *Validator) validate(token string) string {
	if len(token) > maxURLLength {
		return ""
	}
	lower := strings.ToLower(token)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}
	parsed, err := url.Parse(token)
	if err != nil || parsed.Host == "" || !v.allowedSchemes[strings.ToLower(parsed.Scheme)] {
		return ""
	}
	return parsed.String()
}

// Reader returns clipboard text. It is swapped out in tests.
var Reader = clipboard.ReadAll

// ReadURL returns a valid URL from the clipboard, or "" if there is none or
// the clipboard cannot be read.
func ReadURL() string {
	text, err := Reader()
	if err != nil {
		return ""
	}
	return NewValidator().ExtractURL(text)
}
