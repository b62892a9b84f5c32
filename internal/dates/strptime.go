package dates

import (
	"fmt"
	"strings"
)

// strptimeDirectives maps the supported strptime directives to Go reference
// layout elements. Numeric fields use the non-padded forms so that both
// "2024年1月2日" and "2024年01月02日" parse under %Y年%m月%d日.
var strptimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "1",
	'd': "2",
	'H': "15",
	'I': "3",
	'M': "4",
	'S': "5",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
}

// layoutTokens are substrings Go's time package would read as layout elements
// if they appeared in literal template text.
var layoutTokens = []string{"Jan", "Mon", "MST", "PM", "pm", "Z07", "_"}

// translateStrptime converts a strptime template such as "%Y/%m/%d %H:%M" to
// a Go time layout.
func translateStrptime(format string) (string, error) {
	var b strings.Builder
	var literal strings.Builder

	flush := func() error {
		lit := literal.String()
		literal.Reset()
		if strings.ContainsAny(lit, "0123456789") {
			return fmt.Errorf("digits in literal text %q", lit)
		}
		for _, tok := range layoutTokens {
			if strings.Contains(lit, tok) {
				return fmt.Errorf("literal text %q contains layout token %q", lit, tok)
			}
		}
		b.WriteString(lit)
		return nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			literal.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("format %q: dangling %%", format)
		}
		i++
		d := format[i]
		if d == '%' {
			literal.WriteByte('%')
			continue
		}
		elem, ok := strptimeDirectives[d]
		if !ok {
			return "", fmt.Errorf("format %q: unsupported directive %%%c", format, d)
		}
		if err := flush(); err != nil {
			return "", fmt.Errorf("format %q: %w", format, err)
		}
		b.WriteString(elem)
	}
	if err := flush(); err != nil {
		return "", fmt.Errorf("format %q: %w", format, err)
	}

	return b.String(), nil
}
