package parser

import (
	"fmt"
	"regexp"
	"strings"

	"link_checker/internal/models"
)

// FindMatches reports every occurrence of any phrase in text, in order of
// appearance. Phrases are regular expressions joined into one alternation and
// matching ignores case by lower-casing both sides.
func FindMatches(text string, phrases []string) ([]string, error) {
	if phrases == nil {
		return nil, models.ErrInvalidArgument
	}
	if len(phrases) == 0 {
		return []string{}, nil
	}
	return FindPattern(text, strings.Join(phrases, "|"))
}

// FindPattern is FindMatches for an already assembled pattern.
func FindPattern(text, pattern string) ([]string, error) {
	if pattern == "" {
		return []string{}, nil
	}
	re, err := regexp.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: phrase pattern: %v", models.ErrInvalidArgument, err)
	}
	return findAll(re, text), nil
}

func findAll(re *regexp.Regexp, text string) []string {
	found := re.FindAllString(strings.ToLower(text), -1)
	if found == nil {
		return []string{}
	}
	return found
}

// Matcher holds the phrase set of one run. It is built once from configuration
// and only read afterwards, so it may be shared by all workers.
type Matcher struct {
	phrases []string
	re      *regexp.Regexp
}

func NewMatcher(phrases []string) (*Matcher, error) {
	m := &Matcher{phrases: append([]string{}, phrases...)}
	if len(m.phrases) == 0 {
		return m, nil
	}

	re, err := regexp.Compile(strings.ToLower(strings.Join(m.phrases, "|")))
	if err != nil {
		return nil, fmt.Errorf("%w: phrase pattern: %v", models.ErrInvalidArgument, err)
	}
	m.re = re
	return m, nil
}

func (m *Matcher) Phrases() []string {
	return append([]string{}, m.phrases...)
}

// Find is FindMatches against the configured phrases.
func (m *Matcher) Find(text string) []string {
	if m == nil || m.re == nil {
		return []string{}
	}
	return findAll(m.re, text)
}
