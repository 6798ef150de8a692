// Package glob matches file paths against shell-style patterns.
//
// The syntax follows fnmatch rather than path.Match:
//
//	*       any run of characters, including '/'
//	?       exactly one character, including '/'
//	[abc]   one character from the set; ranges like [a-z] are allowed
//	[!abc]  one character not in the set ([^abc] is accepted too)
//	\x      the literal character x
//
// A pattern must match the whole path, so "*.py" matches "src/app/main.py"
// but "main.py" matches only a top-level main.py.
package glob

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Pattern errors
var (
	ErrEmptyPattern = errors.New("empty pattern")
	ErrBadPattern   = errors.New("syntax error in pattern")
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokAnyOne
	tokStar
	tokClass
)

type token struct {
	kind  tokenKind
	r     rune
	class *charClass
}

type charClass struct {
	negate bool
	ranges [][2]rune
}

func (c *charClass) matches(r rune) bool {
	in := false
	for _, rg := range c.ranges {
		if r >= rg[0] && r <= rg[1] {
			in = true
			break
		}
	}
	return in != c.negate
}

// Pattern is a compiled glob
type Pattern struct {
	src    string
	tokens []token
}

// Compile parses a glob pattern
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	p := &Pattern{src: pattern}
	src := []rune(pattern)
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '*':
			// Collapse runs of stars; they match the same strings
			if n := len(p.tokens); n > 0 && p.tokens[n-1].kind == tokStar {
				continue
			}
			p.tokens = append(p.tokens, token{kind: tokStar})
		case '?':
			p.tokens = append(p.tokens, token{kind: tokAnyOne})
		case '\\':
			if i+1 >= len(src) {
				return nil, fmt.Errorf("%w: trailing backslash in %q", ErrBadPattern, pattern)
			}
			i++
			p.tokens = append(p.tokens, token{kind: tokLiteral, r: src[i]})
		case '[':
			class, next, err := parseClass(src, i+1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v in %q", ErrBadPattern, err, pattern)
			}
			p.tokens = append(p.tokens, token{kind: tokClass, class: class})
			i = next
		default:
			p.tokens = append(p.tokens, token{kind: tokLiteral, r: c})
		}
	}
	return p, nil
}

// parseClass parses a bracket expression starting just after '['. It
// returns the index of the closing ']'.
func parseClass(src []rune, i int) (*charClass, int, error) {
	class := &charClass{}
	if i < len(src) && (src[i] == '!' || src[i] == '^') {
		class.negate = true
		i++
	}

	first := true
	for ; i < len(src); i++ {
		c := src[i]
		if c == ']' && !first {
			return class, i, nil
		}
		first = false

		if c == '\\' {
			if i+1 >= len(src) {
				return nil, 0, errors.New("trailing backslash in class")
			}
			i++
			c = src[i]
		}

		lo, hi := c, c
		if i+2 < len(src) && src[i+1] == '-' && src[i+2] != ']' {
			hi = src[i+2]
			if hi == '\\' {
				if i+3 >= len(src) {
					return nil, 0, errors.New("trailing backslash in class")
				}
				hi = src[i+3]
				i++
			}
			i += 2
			if hi < lo {
				return nil, 0, fmt.Errorf("invalid range %c-%c", lo, hi)
			}
		}
		class.ranges = append(class.ranges, [2]rune{lo, hi})
	}
	return nil, 0, errors.New("unterminated character class")
}

// MustCompile is like Compile but panics on error
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern
func (p *Pattern) String() string {
	return p.src
}

// Match reports whether the whole of name matches the pattern
func (p *Pattern) Match(name string) bool {
	toks := p.tokens
	ti := 0
	si := 0
	starTi := -1
	starSi := 0

	for si < len(name) {
		r, size := utf8.DecodeRuneInString(name[si:])
		if ti < len(toks) {
			t := toks[ti]
			switch t.kind {
			case tokStar:
				starTi = ti
				starSi = si
				ti++
				continue
			case tokAnyOne:
				si += size
				ti++
				continue
			case tokLiteral:
				if t.r == r {
					si += size
					ti++
					continue
				}
			case tokClass:
				if t.class.matches(r) {
					si += size
					ti++
					continue
				}
			}
		}

		// Mismatch: let the last star absorb one more character
		if starTi < 0 {
			return false
		}
		_, skip := utf8.DecodeRuneInString(name[starSi:])
		starSi += skip
		si = starSi
		ti = starTi + 1
	}

	for ti < len(toks) && toks[ti].kind == tokStar {
		ti++
	}
	return ti == len(toks)
}

// Validate reports whether pattern is well-formed
func Validate(pattern string) error {
	_, err := Compile(pattern)
	return err
}

// Match compiles pattern and matches it against name
func Match(pattern, name string) (bool, error) {
	p, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return p.Match(name), nil
}

// Set is a list of patterns matched as a union
type Set []*Pattern

// CompileSet compiles every pattern in the list
func CompileSet(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for _, src := range patterns {
		p, err := Compile(src)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchAny reports whether any pattern matches any of the names
func (s Set) MatchAny(names ...string) bool {
	for _, p := range s {
		for _, name := range names {
			if p.Match(name) {
				return true
			}
		}
	}
	return false
}
