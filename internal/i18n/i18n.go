// Package i18n holds the editor's English and Arabic strings.
package i18n

import (
	"fmt"
	"maps"
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported UI language.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// Default is used when nothing better matches.
const Default = English

var (
	supported = []Language{English, Arabic}
	matcher   = language.NewMatcher([]language.Tag{language.English, language.Arabic})
)

// Supported lists the available languages, default first.
func Supported() []Language {
	return append([]Language(nil), supported...)
}

// ParseLanguage accepts a supported language code, case-insensitively and
// ignoring any region subtag.
func ParseLanguage(s string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	base, _ := tag.Base()
	for _, l := range supported {
		if base.String() == string(l) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Match picks the best supported language for an Accept-Language header
// value. An empty or unparsable header yields Default.
func Match(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return supported[idx]
}

// T returns the string for key in lang. Unknown keys come back as the key
// itself; unknown languages fall back to Default.
func T(lang Language, key string) string {
	table, ok := tables[lang]
	if !ok {
		table = tables[Default]
	}
	if s, ok := table[key]; ok && s != "" {
		return s
	}
	return key
}

// Direction returns the text direction of lang, "rtl" or "ltr".
func Direction(lang Language) string {
	if lang == Arabic {
		return "rtl"
	}
	return "ltr"
}

// Catalog returns a copy of the whole table for lang.
func Catalog(lang Language) map[string]string {
	table, ok := tables[lang]
	if !ok {
		table = tables[Default]
	}
	return maps.Clone(table)
}
