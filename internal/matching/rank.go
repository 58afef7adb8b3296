package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"marquee/internal/catalog"
	"marquee/internal/textutil"
)

const (
	// AutoMatchThreshold accepts the top candidate without arbitration.
	AutoMatchThreshold = 0.85
	// closeScoreDelta is how near two scores must be for the superset rule to apply.
	closeScoreDelta = 0.05
	// supersetLengthRatio is how much longer a title must be to count as materially longer.
	supersetLengthRatio = 1.2
	// preferTitleRatio sets the title-preference flag on auto-match.
	preferTitleRatio = 1.5
)

// Candidate is a cache record with its similarity to the event title.
type Candidate struct {
	Record catalog.CacheRecord
	Score  float64
}

// Rank scores every record against title and orders them best first. Closely
// scored neighbours are reordered so the superset title wins when its
// normalized form contains the other and is materially longer.
func Rank(title string, records []catalog.CacheRecord) []Candidate {
	ranked := make([]Candidate, 0, len(records))
	for _, rec := range records {
		ranked = append(ranked, Candidate{Record: rec, Score: textutil.Similarity(title, rec.Name)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := 0; i+1 < len(ranked); i++ {
		a, b := ranked[i], ranked[i+1]
		if a.Score-b.Score <= closeScoreDelta && isMaterialSuperset(b.Record.Name, a.Record.Name) {
			ranked[i], ranked[i+1] = b, a
		}
	}
	return ranked
}

// isMaterialSuperset reports whether longer contains shorter on token
// boundaries and is at least supersetLengthRatio times its length.
func isMaterialSuperset(longer, shorter string) bool {
	nl, ns := textutil.NormalizeTitle(longer), textutil.NormalizeTitle(shorter)
	if nl == "" || ns == "" || nl == ns {
		return false
	}
	if float64(len(nl)) < supersetLengthRatio*float64(len(ns)) {
		return false
	}
	return strings.Contains(" "+nl+" ", " "+ns+" ")
}

// prefersExternalTitle reports whether the external title is more than
// preferTitleRatio times the length of the internal one.
func prefersExternalTitle(internal, external string) bool {
	in := utf8.RuneCountInString(strings.TrimSpace(internal))
	ex := utf8.RuneCountInString(strings.TrimSpace(external))
	return in > 0 && float64(ex) > preferTitleRatio*float64(in)
}
