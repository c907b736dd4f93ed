package search

import (
	"math"
	"slices"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Span is an inclusive [Start, End] range of rune indexes into the NFC form
// of the matched text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result describes a successful match.
type Result struct {
	Score float64 `json:"score"`
	Spans []Span  `json:"spans"`
}

// Matcher scores subsequence matches. Scoring follows the usual file finder
// heuristics:
//   - every matched rune earns charBonus
//   - runes directly after the previous match earn consecutiveBonus
//   - runes at a word boundary (after / _ - . space, or a camelCase hump)
//     earn boundaryBonus
//   - skipped runes between matches cost gapPenalty each
//   - a late first match costs startPenalty per leading rune
//   - a match that starts in the base name earns baseNameBonus
type Matcher struct {
	charBonus        float64
	consecutiveBonus float64
	boundaryBonus    float64
	gapPenalty       float64
	startPenalty     float64
	baseNameBonus    float64
	prefixBonus      float64
}

// NewMatcher creates a matcher with the default weights.
func NewMatcher() *Matcher {
	return &Matcher{
		charBonus:        1.0,
		consecutiveBonus: 1.5,
		boundaryBonus:    1.2,
		gapPenalty:       0.2,
		startPenalty:     0.02,
		baseNameBonus:    2.0,
		prefixBonus:      1.0,
	}
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func toRunes(s string, fold bool) []rune {
	runes := make([]rune, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		if fold {
			r = unicode.ToLower(r)
		}
		runes = append(runes, r)
	}
	return runes
}

func isSeparator(r rune) bool {
	switch r {
	case '/', '_', '-', '.', ' ':
		return true
	}
	return false
}

func isBoundary(text []rune, j int) bool {
	if j == 0 {
		return true
	}
	prev, cur := text[j-1], text[j]
	if isSeparator(prev) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(cur)
}

// Match reports whether every rune of pattern occurs in text in order and
// scores the best alignment. Matching is case insensitive unless the
// pattern contains an upper case letter. Both strings are compared in NFC.
func (m *Matcher) Match(pattern, text string) (Result, bool) {
	pattern = norm.NFC.String(pattern)
	text = norm.NFC.String(text)
	if pattern == "" {
		return Result{}, true
	}

	fold := !hasUpper(pattern)
	p := toRunes(pattern, fold)
	original := toRunes(text, false)
	t := original
	if fold {
		t = toRunes(text, true)
	}
	if len(p) > len(t) || !isSubsequence(p, t) {
		return Result{}, false
	}

	baseStart := 0
	for j, r := range t {
		if r == '/' {
			baseStart = j + 1
		}
	}

	positions, score := m.align(p, t, original, baseStart)
	if positions[0] == 0 || positions[0] == baseStart {
		score += m.prefixBonus
	}

	spans := make([]Span, 0, len(positions))
	for _, pos := range positions {
		spans = append(spans, Span{Start: pos, End: pos})
	}
	return Result{Score: score, Spans: MergeSpans(spans)}, true
}

func isSubsequence(p, t []rune) bool {
	i := 0
	for _, r := range t {
		if i < len(p) && p[i] == r {
			i++
		}
	}
	return i == len(p)
}

// align finds the highest scoring placement of p in t with dynamic
// programming. score[i][j] is the best score with p[i] placed at t[j].
func (m *Matcher) align(p, t, original []rune, baseStart int) ([]int, float64) {
	rows, cols := len(p), len(t)
	negInf := math.Inf(-1)

	score := make([][]float64, rows)
	back := make([][]int, rows)
	for i := range rows {
		score[i] = make([]float64, cols)
		back[i] = make([]int, cols)
		for j := range cols {
			score[i][j] = negInf
			back[i][j] = -1
		}
	}

	bonus := func(j int) float64 {
		b := m.charBonus
		if isBoundary(original, j) {
			b += m.boundaryBonus
		}
		return b
	}

	for j := range cols {
		if t[j] != p[0] {
			continue
		}
		s := bonus(j) - m.startPenalty*float64(j)
		if j >= baseStart {
			s += m.baseNameBonus
		}
		score[0][j] = s
	}

	for i := 1; i < rows; i++ {
		// best is the best predecessor for column j, already charged for the
		// gap up to j-1
		best, bestIdx := negInf, -1
		for j := 1; j < cols; j++ {
			if best > negInf {
				best -= m.gapPenalty
			}
			if prev := score[i-1][j-1]; prev > best {
				best, bestIdx = prev, j-1
			}
			if t[j] != p[i] || bestIdx == -1 {
				continue
			}

			s := best + bonus(j)
			from := bestIdx
			if adjacent := score[i-1][j-1]; adjacent > negInf {
				if withRun := adjacent + bonus(j) + m.consecutiveBonus; withRun >= s {
					s, from = withRun, j-1
				}
			}
			score[i][j] = s
			back[i][j] = from
		}
	}

	end, total := -1, negInf
	for j := range cols {
		if score[rows-1][j] > total {
			end, total = j, score[rows-1][j]
		}
	}

	positions := make([]int, rows)
	for i, j := rows-1, end; i >= 0; i-- {
		positions[i] = j
		j = back[i][j]
	}
	return positions, total
}

// MergeSpans joins overlapping and adjacent spans. Spans must be sorted.
func MergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	merged := make([]Span, 0, len(spans))
	current := spans[0]
	for _, next := range spans[1:] {
		if next.Start <= current.End+1 {
			current.End = max(current.End, next.End)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Match is a candidate that matched a pattern.
type Match struct {
	Text   string `json:"text"`
	Index  int    `json:"index"`
	Result Result `json:"result"`
}

// Filter returns the candidates matching pattern, best first. Ties are
// broken by shorter text and then input order. An empty pattern returns
// every candidate in input order. limit <= 0 means no limit.
func (m *Matcher) Filter(pattern string, candidates []string, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		res, ok := m.Match(pattern, c)
		if !ok {
			continue
		}
		matches = append(matches, Match{Text: c, Index: i, Result: res})
	}

	if norm.NFC.String(pattern) != "" {
		slices.SortStableFunc(matches, func(a, b Match) int {
			switch {
			case a.Result.Score > b.Result.Score:
				return -1
			case a.Result.Score < b.Result.Score:
				return 1
			}
			if la, lb := utf8.RuneCountInString(a.Text), utf8.RuneCountInString(b.Text); la != lb {
				return la - lb
			}
			return a.Index - b.Index
		})
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Filter matches candidates with a default matcher.
func Filter(pattern string, candidates []string, limit int) []Match {
	return NewMatcher().Filter(pattern, candidates, limit)
}
