package taxonomy

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/rajasatyajit/CommentIntel/internal/logger"
)

// matchTimeout bounds a single regex evaluation so a pathological pattern cannot stall a batch.
const matchTimeout = 250 * time.Millisecond

// Pattern is a compiled context pattern. Word classes (\w, \b) are Unicode aware so
// patterns written against Turkish text behave as their authors expect.
type Pattern struct {
	Source string
	re     *regexp2.Regexp
}

func compilePattern(source string) (*Pattern, error) {
	re, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	re.MatchTimeout = matchTimeout
	return &Pattern{Source: source, re: re}, nil
}

// MustPattern compiles source or panics. Intended for tests and static tables.
func MustPattern(source string) *Pattern {
	p, err := compilePattern(source)
	if err != nil {
		panic(err)
	}
	return p
}

// MatchString reports whether the pattern matches anywhere in s.
// A timed out evaluation counts as no match.
func (p *Pattern) MatchString(s string) bool {
	ok, err := p.re.MatchString(s)
	if err != nil {
		logger.Warn("Pattern evaluation failed", "pattern", p.Source, "error", err)
		return false
	}
	return ok
}

// FindAll returns every non-overlapping match of the pattern in s.
func (p *Pattern) FindAll(s string) []string {
	var out []string
	m, err := p.re.FindStringMatch(s)
	for m != nil && err == nil {
		out = append(out, m.String())
		m, err = p.re.FindNextMatch(m)
	}
	if err != nil {
		logger.Warn("Pattern evaluation failed", "pattern", p.Source, "error", err)
	}
	return out
}

func (p *Pattern) String() string {
	return p.Source
}
