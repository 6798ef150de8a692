// Package config holds the chunking configuration and the YAML settings file.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/diffchunk-mcp/internal/glob"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// DefaultMaxChunkLines is the line budget used when none is configured
const DefaultMaxChunkLines = 4000

// WhitespaceMode selects how aggressively paired whitespace edits are
// treated as trivial.
type WhitespaceMode string

const (
	// WhitespaceTrailing treats pairs differing only in trailing whitespace
	// or line-ending style as trivial
	WhitespaceTrailing WhitespaceMode = "trailing"
	// WhitespaceIndentation also ignores leading whitespace (reindentation)
	WhitespaceIndentation WhitespaceMode = "indentation"
	// WhitespaceAll ignores every whitespace difference inside the line
	WhitespaceAll WhitespaceMode = "all"
)

// Config is the immutable policy for one load
type Config struct {
	MaxChunkLines        int            `yaml:"max_chunk_lines"`
	SkipTrivial          bool           `yaml:"skip_trivial"`
	SkipGenerated        bool           `yaml:"skip_generated"`
	IncludePatterns      []string       `yaml:"include_patterns"`
	ExcludePatterns      []string       `yaml:"exclude_patterns"`
	Whitespace           WhitespaceMode `yaml:"whitespace"`
	PreferFileBoundaries bool           `yaml:"prefer_file_boundaries"`
}

// Default returns the documented defaults
func Default() Config {
	return Config{
		MaxChunkLines:        DefaultMaxChunkLines,
		SkipTrivial:          true,
		SkipGenerated:        true,
		Whitespace:           WhitespaceTrailing,
		PreferFileBoundaries: true,
	}
}

// Validate checks every field and returns an InvalidConfiguration error
// describing the first problem.
func (c Config) Validate() error {
	if c.MaxChunkLines <= 0 {
		return types.ConfigError(fmt.Sprintf("max_chunk_lines must be positive, got %d", c.MaxChunkLines), nil).
			WithContext("max_chunk_lines", c.MaxChunkLines)
	}

	switch c.Whitespace {
	case WhitespaceTrailing, WhitespaceIndentation, WhitespaceAll:
	default:
		return types.ConfigError(fmt.Sprintf("unknown whitespace mode %q (want trailing, indentation or all)", c.Whitespace), nil)
	}

	for _, p := range c.IncludePatterns {
		if err := glob.Validate(p); err != nil {
			return types.ConfigError(fmt.Sprintf("invalid include pattern %q", p), err)
		}
	}
	for _, p := range c.ExcludePatterns {
		if err := glob.Validate(p); err != nil {
			return types.ConfigError(fmt.Sprintf("invalid exclude pattern %q", p), err)
		}
	}

	return nil
}

// Fingerprint returns a stable identity for the configuration. Two configs
// with the same fingerprint always chunk a document identically.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("max=%d;trivial=%t;generated=%t;include=%s;exclude=%s;ws=%s;files=%t",
		c.MaxChunkLines, c.SkipTrivial, c.SkipGenerated,
		strings.Join(c.IncludePatterns, ","), strings.Join(c.ExcludePatterns, ","),
		c.Whitespace, c.PreferFileBoundaries)
}

// Option keys accepted by FromOptions
const (
	OptMaxChunkLines        = "max_chunk_lines"
	OptSkipTrivial          = "skip_trivial"
	OptSkipGenerated        = "skip_generated"
	OptIncludePatterns      = "include_patterns"
	OptExcludePatterns      = "exclude_patterns"
	OptWhitespace           = "whitespace"
	OptPreferFileBoundaries = "prefer_file_boundaries"
)

// FromOptions applies string-keyed options on top of base. Unknown keys and
// values of the wrong type are rejected rather than ignored.
func FromOptions(base Config, opts map[string]interface{}) (Config, error) {
	cfg := base
	cfg.IncludePatterns = append([]string(nil), base.IncludePatterns...)
	cfg.ExcludePatterns = append([]string(nil), base.ExcludePatterns...)

	// Sorted so the first reported error does not depend on map order
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := opts[key]
		var err error
		switch key {
		case OptMaxChunkLines:
			cfg.MaxChunkLines, err = toInt(val)
		case OptSkipTrivial:
			cfg.SkipTrivial, err = toBool(val)
		case OptSkipGenerated:
			cfg.SkipGenerated, err = toBool(val)
		case OptIncludePatterns:
			cfg.IncludePatterns, err = toPatterns(val)
		case OptExcludePatterns:
			cfg.ExcludePatterns, err = toPatterns(val)
		case OptWhitespace:
			var s string
			s, err = toString(val)
			cfg.Whitespace = WhitespaceMode(s)
		case OptPreferFileBoundaries:
			cfg.PreferFileBoundaries, err = toBool(val)
		default:
			return Config{}, types.ConfigError(fmt.Sprintf("unknown option %q", key), nil).
				WithContext("option", key)
		}
		if err != nil {
			return Config{}, types.ConfigError(fmt.Sprintf("invalid value for %s", key), err).
				WithContext("option", key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SplitPatterns splits a comma-separated pattern list, dropping blanks
func SplitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		// JSON numbers arrive as float64
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func toBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
	return b, nil
}

func toString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

func toPatterns(v interface{}) ([]string, error) {
	switch p := v.(type) {
	case string:
		return SplitPatterns(p), nil
	case []string:
		return append([]string(nil), p...), nil
	case []interface{}:
		out := make([]string, 0, len(p))
		for i, item := range p {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("pattern %d: expected a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", v)
	}
}
