package matcher

import (
	ac "github.com/petar-dambovaliev/aho-corasick"
)

// stringSet answers exact membership for large $in operands with one
// automaton pass. A target is a member when the leftmost-longest match
// spans the whole target.
type stringSet struct {
	automaton *ac.AhoCorasick
	hasEmpty  bool
	size      int
}

func newStringSet(items []string) *stringSet {
	s := &stringSet{}
	seen := make(map[string]struct{}, len(items))
	patterns := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" {
			s.hasEmpty = true
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		patterns = append(patterns, it)
	}
	s.size = len(patterns)
	if s.hasEmpty {
		s.size++
	}
	if len(patterns) == 0 {
		return s
	}
	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		MatchKind: ac.LeftMostLongestMatch,
	})
	automaton := builder.Build(patterns)
	s.automaton = &automaton
	return s
}

func (s *stringSet) contains(target string) bool {
	if target == "" {
		return s.hasEmpty
	}
	if s.automaton == nil {
		return false
	}
	matches := s.automaton.FindAll(target)
	return len(matches) > 0 && matches[0].Start() == 0 && matches[0].End() == len(target)
}
