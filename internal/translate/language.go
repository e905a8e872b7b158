package translate

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var ErrInvalidLanguage = errors.New("translate: invalid language tag")

// Canonical validates a BCP 47 tag and returns its canonical form ("EN-us" -> "en-US").
func Canonical(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", ErrInvalidLanguage
	}
	t, err := language.Parse(tag)
	if err != nil || t == language.Und {
		return "", ErrInvalidLanguage
	}
	return t.String(), nil
}

// LanguageName gives the English name for a tag ("es" -> "Spanish"), or the tag itself
// when it cannot be resolved.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}
