package result

import (
	"cmp"
	"slices"
)

// Match is one ranked record: its combined text, its cosine similarity to the query
// and its position in the source collection.
type Match struct {
	text     string
	score    float64
	position int
}

// NewMatch creates a match.
func NewMatch(text string, score float64, position int) Match {
	return Match{text: text, score: score, position: position}
}

// Text returns the combined text of the matched record.
func (m *Match) Text() string { return m.text }

// Score returns the cosine similarity in [-1, 1].
func (m *Match) Score() float64 { return m.score }

// Position returns the record's index in its collection.
func (m *Match) Position() int { return m.position }

// Result is the ranked matches of one category, best first.
// Equal scores keep ascending record position.
type Result struct {
	matches []Match
}

// New ranks matches by descending score, breaking ties by position.
func New(matches []Match) Result {
	ms := slices.Clone(matches)
	slices.SortStableFunc(ms, func(a, b Match) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.position, b.position)
	})
	return Result{matches: ms}
}

// Empty returns a result with no matches.
func Empty() Result { return Result{matches: []Match{}} }

// Matches returns a copy of the ranked matches.
func (r *Result) Matches() []Match { return slices.Clone(r.matches) }

// Len returns the number of matches.
func (r *Result) Len() int { return len(r.matches) }

// Texts returns the matched texts in rank order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.matches))
	for i := range r.matches {
		out[i] = r.matches[i].text
	}
	return out
}

// Set maps each configured category to its result for one query.
// Categories iterate in the order given to NewSet.
type Set struct {
	categories []string
	results    map[string]Result
}

// NewSet creates a set whose keys are exactly categories, each starting empty.
func NewSet(categories []string) Set {
	s := Set{
		categories: slices.Clone(categories),
		results:    make(map[string]Result, len(categories)),
	}
	for _, c := range categories {
		s.results[c] = Empty()
	}
	return s
}

// Put stores the result of a configured category. Unknown categories are ignored.
func (s *Set) Put(category string, r Result) {
	if _, ok := s.results[category]; ok {
		s.results[category] = r
	}
}

// Get returns the result of category.
func (s *Set) Get(category string) (Result, bool) {
	r, ok := s.results[category]
	return r, ok
}

// Categories returns the configured category names in order.
func (s *Set) Categories() []string { return slices.Clone(s.categories) }

// Total returns the number of matches across all categories.
func (s *Set) Total() int {
	n := 0
	for _, r := range s.results {
		n += r.Len()
	}
	return n
}
