// Package parser reads unified diff text into a types.DiffDocument.
//
// It accepts the output of git diff, git format-patch, git show and
// diff -u / diff -ruN. Anything before the first file section (commit
// messages, mail headers, diffstat) is ignored.
//
// # Basic Usage
//
//	p := parser.New()
//	doc, err := p.Parse(file)
//	if err != nil {
//	    return err // only read failures surface here
//	}
//
//	for _, f := range doc.Files {
//	    fmt.Printf("%s %s: %d lines\n", f.ChangeKind, f.Path(), f.LineCount)
//	}
//
// # Tolerance
//
// Malformed input never aborts a parse. Each irregularity is recorded as an
// Anomaly on the file it belongs to and parsing resumes at the next
// recognizable boundary:
//   - a hunk header that does not parse skips the lines under it
//   - a hunk that ends before its declared counts is kept as is
//   - content that follows a completed hunk is appended to that hunk
//   - +/- lines outside any hunk are dropped
//
// The input is read once, line by line, so very large diffs do not need to
// fit in a single buffer.
package parser
