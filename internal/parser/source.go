package parser

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// lineSource reads an input one line at a time with a single line of
// lookahead. Lines may be arbitrarily long; only the trailing '\n' is
// removed, so a '\r' from CRLF input stays part of the line.
type lineSource struct {
	r       *bufio.Reader
	peeked  string
	hasPeek bool
	eof     bool
	err     error
	lineNo  int
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line and advances the line counter
func (s *lineSource) Next() (string, bool) {
	if s.hasPeek {
		s.hasPeek = false
		s.lineNo++
		return s.peeked, true
	}
	line, ok := s.read()
	if ok {
		s.lineNo++
	}
	return line, ok
}

// Peek returns the next line without consuming it
func (s *lineSource) Peek() (string, bool) {
	if s.hasPeek {
		return s.peeked, true
	}
	line, ok := s.read()
	if !ok {
		return "", false
	}
	s.peeked = line
	s.hasPeek = true
	return line, true
}

// Line returns the 1-based number of the line most recently returned by Next
func (s *lineSource) Line() int {
	return s.lineNo
}

// Err returns the first read error other than io.EOF
func (s *lineSource) Err() error {
	return s.err
}

func (s *lineSource) read() (string, bool) {
	if s.eof || s.err != nil {
		return "", false
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
			return "", false
		}
		s.eof = true
		if line == "" {
			return "", false
		}
	}
	return strings.TrimSuffix(line, "\n"), true
}
