package shelf

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is returned for malformed filter expressions.
var ErrSyntax = errors.New("invalid filter")

// numeral is a plain decimal number. strconv alone would also take words
// such as "inf" or "NaN".
var numeral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func parseNumber(tok string) (float64, bool) {
	if !numeral.MatchString(tok) {
		return 0, false
	}
	n, err := strconv.ParseFloat(tok, 64)
	return n, err == nil
}

// Parse compiles a filter expression.
//
// Tokens are separated by whitespace:
//
//	a:b     index in [a, b]
//	12      index is 12
//	word    title is word
//	V[...]  the enclosed tokens, matched against the volume instead
//
// Tokens are OR-ed together, and the volume group is OR-ed with the rest.
func Parse(expr string) (Filter, error) {
	plain, volume, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(plain) == 0 && len(volume) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	out := False()
	for _, tok := range plain {
		f, err := indexToken(tok)
		if err != nil {
			return nil, err
		}
		out = out.Or(f)
	}
	for _, tok := range volume {
		f, err := volumeToken(tok)
		if err != nil {
			return nil, err
		}
		out = out.Or(f)
	}
	return out, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) Filter {
	f, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// tokenize splits expr into plain tokens and tokens found inside V[...]
// groups. Groups may span whitespace and do not nest.
func tokenize(expr string) (plain, volume []string, err error) {
	rest := strings.TrimSpace(expr)
	for rest != "" {
		if strings.HasPrefix(rest, "V[") {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, nil, fmt.Errorf("%w: unterminated volume group in %q", ErrSyntax, expr)
			}
			inner := rest[2:end]
			if strings.Contains(inner, "[") {
				return nil, nil, fmt.Errorf("%w: nested group in %q", ErrSyntax, expr)
			}
			volume = append(volume, strings.Fields(inner)...)
			rest = strings.TrimLeftFunc(rest[end+1:], unicode.IsSpace)
			continue
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			end = len(rest)
		}
		tok := rest[:end]
		if strings.ContainsAny(tok, "[]") {
			return nil, nil, fmt.Errorf("%w: unexpected bracket in %q", ErrSyntax, tok)
		}
		plain = append(plain, tok)
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return plain, volume, nil
}

func indexToken(tok string) (Filter, error) {
	if strings.Contains(tok, ":") {
		start, end, err := parseRange(tok)
		if err != nil {
			return nil, err
		}
		return IndexRange(start, end), nil
	}
	if n, ok := parseNumber(tok); ok {
		return IndexIn(n), nil
	}
	return TitleIn(tok), nil
}

func volumeToken(tok string) (Filter, error) {
	if strings.Contains(tok, ":") {
		start, end, err := parseRange(tok)
		if err != nil {
			return nil, err
		}
		return VolumeRange(start, end), nil
	}
	n, ok := parseNumber(tok)
	if !ok {
		return nil, fmt.Errorf("%w: volume %q is not a number", ErrSyntax, tok)
	}
	return VolumeIn(n), nil
}

func parseRange(tok string) (float64, float64, error) {
	left, right, _ := strings.Cut(tok, ":")
	start, ok := parseNumber(left)
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad range start in %q", ErrSyntax, tok)
	}
	end, ok := parseNumber(right)
	if !ok {
		return 0, 0, fmt.Errorf("%w: bad range end in %q", ErrSyntax, tok)
	}
	return start, end, nil
}
