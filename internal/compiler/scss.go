package compiler

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// The SCSS support is a subset: `//` line comments are dropped,
// `$variable: value;` declarations are resolved in source order and left
// behind as block comments, and `$variable` references are substituted.
// Nesting, mixins and functions pass through untouched.

var (
	scssVarDecl = regexp.MustCompile(`(?m)^([ \t]*)\$([\w-]+)[ \t]*:[ \t]*([^;{}]*?)[ \t]*(!default)?[ \t]*;`)
	scssVarRef  = regexp.MustCompile(`\$([\w-]+)`)
)

func compileSCSS(src string) (string, error) {
	clean, err := stripLineComments(src)
	if err != nil {
		return "", err
	}

	vars := make(map[string]string)
	var out strings.Builder
	out.Grow(len(clean))

	last := 0
	for _, m := range scssVarDecl.FindAllStringSubmatchIndex(clean, -1) {
		out.WriteString(substituteVars(clean[last:m[0]], vars))

		indent := clean[m[2]:m[3]]
		name := clean[m[4]:m[5]]
		value := substituteVars(clean[m[6]:m[7]], vars)
		isDefault := m[8] >= 0

		if _, exists := vars[name]; !exists || !isDefault {
			vars[name] = value
		}

		fmt.Fprintf(&out, "%s/* $%s: %s; */", indent, name, strings.ReplaceAll(value, "*/", "* /"))
		last = m[1]
	}
	out.WriteString(substituteVars(clean[last:], vars))

	return out.String(), nil
}

func substituteVars(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "$") {
		return s
	}
	return scssVarRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := vars[ref[1:]]; ok {
			return v
		}
		return ref
	})
}

// stripLineComments removes `//` comments while respecting strings, block
// comments and url(...) values, and rejects structurally broken input.
func stripLineComments(src string) (string, error) {
	runes := []rune(src)
	var b strings.Builder
	b.Grow(len(src))

	var quote rune
	inBlock := false
	depth := 0
	line := 1

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		if r == '\n' {
			line++
		}

		switch {
		case inBlock:
			b.WriteRune(r)
			if r == '*' && next == '/' {
				b.WriteRune(next)
				i++
				inBlock = false
			}

		case quote != 0:
			b.WriteRune(r)
			switch {
			case r == '\\' && next != 0:
				b.WriteRune(next)
				i++
			case r == quote:
				quote = 0
			case r == '\n':
				return "", fmt.Errorf("line %d: unterminated string", line-1)
			}

		case r == '"' || r == '\'':
			quote = r
			b.WriteRune(r)

		case r == '/' && next == '*':
			inBlock = true
			b.WriteString("/*")
			i++

		case r == '/' && next == '/' && (i == 0 || unicode.IsSpace(runes[i-1]) || strings.ContainsRune(";{}", runes[i-1])):
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				b.WriteRune('\n')
				line++
			}

		case r == '{':
			depth++
			b.WriteRune(r)

		case r == '}':
			depth--
			if depth < 0 {
				return "", fmt.Errorf("line %d: unexpected '}'", line)
			}
			b.WriteRune(r)

		default:
			b.WriteRune(r)
		}
	}

	switch {
	case inBlock:
		return "", fmt.Errorf("unterminated block comment")
	case quote != 0:
		return "", fmt.Errorf("unterminated string")
	case depth != 0:
		return "", fmt.Errorf("%d unclosed block(s)", depth)
	}

	return b.String(), nil
}
