package backup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/seedlink/internal/kvstore"
)

// The compact form holds one key per line:
//
//	key<TAB>value          string value
//	key<TAB>i<TAB>value    int value
//	key<TAB>b<TAB>value    bool value
//
// Backslash, tab, newline and carriage return are escaped in keys and values.
// Values are carried byte for byte, so strings that are not valid UTF-8
// survive unchanged.

var compactEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func encodeCompact(d Document) string {
	var sb strings.Builder
	for _, k := range sortedKeys(d) {
		v := d[k]
		sb.WriteString(compactEscaper.Replace(k))
		sb.WriteByte('\t')
		switch v.Kind {
		case kvstore.KindInt:
			sb.WriteString("i\t")
		case kvstore.KindBool:
			sb.WriteString("b\t")
		}
		sb.WriteString(compactEscaper.Replace(v.Text()))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func decodeCompact(s string) (Document, error) {
	doc := make(Document)
	for n, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		var (
			kind kvstore.Kind
			raw  string
		)
		switch len(fields) {
		case 2:
			kind, raw = kvstore.KindString, fields[1]
		case 3:
			switch fields[1] {
			case "i":
				kind = kvstore.KindInt
			case "b":
				kind = kvstore.KindBool
			default:
				return nil, fmt.Errorf("%w: line %d: unknown type tag %q", ErrMalformed, n+1, fields[1])
			}
			raw = fields[2]
		default:
			return nil, fmt.Errorf("%w: line %d: expected 2 or 3 fields, got %d", ErrMalformed, n+1, len(fields))
		}

		key, err := unescapeCompact(fields[0])
		if err != nil || key == "" || !utf8.ValidString(key) {
			return nil, fmt.Errorf("%w: line %d: bad key", ErrMalformed, n+1)
		}
		text, err := unescapeCompact(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n+1, err)
		}
		v, err := kvstore.Parse(kind, text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n+1, err)
		}
		doc[key] = v
	}
	return doc, nil
}

func unescapeCompact(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		switch s[i] {
		case '\\':
			sb.WriteByte('\\')
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return sb.String(), nil
}
