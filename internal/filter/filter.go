// Package filter classifies parsed diffs: it marks whitespace-only changes
// as trivial and excludes files by pattern or because they are generated.
//
// Classification mutates the document in place and is idempotent; running
// it twice with the same configuration leaves the same flags behind.
package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dshills/diffchunk-mcp/internal/config"
	"github.com/dshills/diffchunk-mcp/internal/glob"
	"github.com/dshills/diffchunk-mcp/pkg/types"
)

// GeneratedPatterns lists files that are build output, dependency locks or
// machine-generated sources. Each pattern also matches at any depth.
var GeneratedPatterns = []string{
	"*.min.js",
	"*.min.css",
	"*.bundle.js",
	"*.bundle.css",
	"*.generated.js",
	"*.generated.ts",
	"*.generated.py",
	"*.generated.cs",
	"*.g.cs",
	"*.g.vb",
	"*.designer.cs",
	"*.designer.vb",
	"*.pb.go",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Pipfile.lock",
	"poetry.lock",
	"Cargo.lock",
	"composer.lock",
	"Gemfile.lock",
	"*.pyc",
	"*.pyo",
	"*.pyd",
	"__pycache__/*",
	".vs/*",
	".vscode/*",
	"node_modules/*",
	"vendor/*",
	"bin/*",
	"obj/*",
	"dist/*",
	"build/*",
}

var generatedSet = compileGenerated()

func compileGenerated() glob.Set {
	set := make(glob.Set, 0, 2*len(GeneratedPatterns))
	for _, p := range GeneratedPatterns {
		set = append(set, glob.MustCompile(p))
		if !strings.HasPrefix(p, "*") {
			set = append(set, glob.MustCompile("*/"+p))
		}
	}
	return set
}

// IsGenerated reports whether path names a generated file
func IsGenerated(path string) bool {
	return generatedSet.MatchAny(path)
}

// Classifier applies one configuration to documents
type Classifier struct {
	cfg     config.Config
	include glob.Set
	exclude glob.Set
	equal   func(a, b string) bool
}

// New validates cfg and compiles its patterns
func New(cfg config.Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	include, err := glob.CompileSet(cfg.IncludePatterns)
	if err != nil {
		return nil, types.ConfigError("invalid include pattern", err)
	}
	exclude, err := glob.CompileSet(cfg.ExcludePatterns)
	if err != nil {
		return nil, types.ConfigError("invalid exclude pattern", err)
	}

	return &Classifier{
		cfg:     cfg,
		include: include,
		exclude: exclude,
		equal:   whitespaceEqual(cfg.Whitespace),
	}, nil
}

// Classify is a convenience wrapper around New and Classifier.Classify
func Classify(doc *types.DiffDocument, cfg config.Config) error {
	c, err := New(cfg)
	if err != nil {
		return err
	}
	c.Classify(doc)
	return nil
}

// Classify sets the Trivial flag on every change line and the Exclusion of
// every file in doc
func (c *Classifier) Classify(doc *types.DiffDocument) {
	if doc == nil {
		return
	}
	for _, f := range doc.Files {
		c.classifyFile(f)
	}
}

func (c *Classifier) classifyFile(f *types.FileDiff) {
	f.Exclusion = types.ExclusionNone

	changes, trivial := 0, 0
	for _, h := range f.Hunks {
		c.classifyHunk(h)
		for i := range h.Lines {
			if h.Lines[i].IsChange() {
				changes++
				if h.Lines[i].Trivial {
					trivial++
				}
			}
		}
	}

	paths := f.Paths()
	switch {
	case c.exclude.MatchAny(paths...):
		f.Exclusion = types.ExclusionPattern
	case len(c.include) > 0 && !c.include.MatchAny(paths...):
		f.Exclusion = types.ExclusionPattern
	case c.cfg.SkipGenerated && IsGenerated(f.Path()):
		f.Exclusion = types.ExclusionGenerated
	case c.cfg.SkipTrivial && changes > 0 && trivial == changes:
		f.Exclusion = types.ExclusionTrivialOnly
	}
}

// classifyHunk marks trivial lines in one hunk. A change run is a maximal
// sequence of additions and deletions; within a run the i-th deletion is
// paired with the i-th addition.
func (c *Classifier) classifyHunk(h *types.Hunk) {
	lines := h.Lines
	for i := 0; i < len(lines); {
		if !lines[i].IsChange() {
			lines[i].Trivial = false
			i++
			continue
		}

		end := i
		for end < len(lines) && lines[end].IsChange() {
			end++
		}
		c.classifyRun(lines[i:end])
		i = end
	}
}

func (c *Classifier) classifyRun(run []types.DiffLine) {
	var dels, adds []int
	for i := range run {
		run[i].Trivial = isBlank(run[i].Text)
		if run[i].Kind == types.LineDeletion {
			dels = append(dels, i)
		} else {
			adds = append(adds, i)
		}
	}

	for i := 0; i < len(dels) && i < len(adds); i++ {
		d, a := &run[dels[i]], &run[adds[i]]
		if d.Trivial || a.Trivial {
			continue
		}
		if c.equal(d.Text, a.Text) {
			d.Trivial = true
			a.Trivial = true
		}
	}
}

// isBlank reports whether s is empty once all whitespace is removed
func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

func whitespaceEqual(mode config.WhitespaceMode) func(a, b string) bool {
	switch mode {
	case config.WhitespaceIndentation:
		return func(a, b string) bool {
			return strings.TrimSpace(a) == strings.TrimSpace(b)
		}
	case config.WhitespaceAll:
		return func(a, b string) bool {
			return stripSpace(a) == stripSpace(b)
		}
	default:
		return func(a, b string) bool {
			return strings.TrimRightFunc(a, unicode.IsSpace) == strings.TrimRightFunc(b, unicode.IsSpace)
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Summary counts what classification removed
type Summary struct {
	TrivialOnlyFiles int
	PatternExcluded  int
	GeneratedFiles   int

	// TrivialLines counts trivial change lines in files that were not
	// excluded by pattern or as generated
	TrivialLines int
}

// Summarize counts the results of a previous Classify
func Summarize(doc *types.DiffDocument) Summary {
	var s Summary
	if doc == nil {
		return s
	}
	for _, f := range doc.Files {
		switch f.Exclusion {
		case types.ExclusionPattern:
			s.PatternExcluded++
			continue
		case types.ExclusionGenerated:
			s.GeneratedFiles++
			continue
		case types.ExclusionTrivialOnly:
			s.TrivialOnlyFiles++
		}
		for _, h := range f.Hunks {
			for i := range h.Lines {
				if h.Lines[i].IsChange() && h.Lines[i].Trivial {
					s.TrivialLines++
				}
			}
		}
	}
	return s
}

// String formats the summary for logs
func (s Summary) String() string {
	return fmt.Sprintf("trivial-only=%d excluded=%d generated=%d trivial-lines=%d",
		s.TrivialOnlyFiles, s.PatternExcluded, s.GeneratedFiles, s.TrivialLines)
}
