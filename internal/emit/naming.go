package emit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.Und, cases.NoLower)

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
}

// Pascal converts a schema identifier to PascalCase: read_reg → ReadReg.
func Pascal(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// Camel converts a schema identifier to camelCase: bb_terminator → bbTerminator.
func Camel(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(ws[0])
	for _, w := range ws[1:] {
		b.WriteString(title.String(w))
	}
	return b.String()
}
