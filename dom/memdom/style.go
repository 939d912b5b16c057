package memdom

import (
	"strings"
	"unicode"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// cssProperty maps a camel-cased IDL name to its CSS property name:
// backgroundImage -> background-image, webkitBorderImage ->
// -webkit-border-image, MozBorderImage -> -moz-border-image.
func cssProperty(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if i == 0 && (strings.HasPrefix(name, "webkit") || strings.HasPrefix(name, "ms")) {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// declarations is a CSS declaration block shared by inline styles and style
// rules. onChange runs after every successful Set.
type declarations struct {
	decls    []*css.Declaration
	onChange func(prop, value string)
}

func parseDeclarations(text string) []*css.Declaration {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		return nil
	}
	return decls
}

func (d *declarations) Get(name string) string {
	prop := cssProperty(name)
	// The last declaration wins, as in the cascade.
	for i := len(d.decls) - 1; i >= 0; i-- {
		if strings.EqualFold(d.decls[i].Property, prop) {
			return d.decls[i].Value
		}
	}
	return ""
}

func (d *declarations) Set(name, value string) {
	prop := cssProperty(name)
	var kept []*css.Declaration
	for _, decl := range d.decls {
		if !strings.EqualFold(decl.Property, prop) {
			kept = append(kept, decl)
		}
	}
	if value != "" {
		kept = append(kept, &css.Declaration{Property: prop, Value: value})
	}
	d.decls = kept
	if d.onChange != nil {
		d.onChange(prop, value)
	}
}

// String serialises the block in attribute form ("a: b; c: d").
func (d *declarations) String() string {
	parts := make([]string, 0, len(d.decls))
	for _, decl := range d.decls {
		s := decl.Property + ": " + decl.Value
		if decl.Important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}
