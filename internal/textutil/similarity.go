package textutil

import "strings"

// containmentFloor is the score assigned when one normalized title contains
// the other and the shorter one has at least two tokens.
const containmentFloor = 0.9

// Similarity returns a [0,1] score between two titles: the Sørensen-Dice
// coefficient over character bigrams of the normalized forms, raised to
// containmentFloor when one title fully contains the other.
func Similarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	score := Dice(na, nb)
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(strings.Fields(shorter)) >= 2 && containsPhrase(longer, shorter) && score < containmentFloor {
		score = containmentFloor
	}
	return score
}

// Dice computes the Sørensen-Dice coefficient over character bigrams. Inputs
// are compared as given; callers normalize first.
func Dice(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ba, bb := bigrams(a), bigrams(b)
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	if total == 0 {
		return 0
	}
	shared := 0
	for gram, n := range ba {
		shared += min(n, bb[gram])
	}
	return 2 * float64(shared) / float64(total)
}

func bigrams(s string) map[string]int {
	r := []rune(s)
	out := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}

// containsPhrase reports whether needle appears in haystack on token boundaries.
func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// fillerTokens never count as overlap between names on their own.
var fillerTokens = map[string]struct{}{
	"the": {}, "and": {}, "with": {}, "for": {}, "from": {}, "feat": {}, "featuring": {},
	"live": {}, "tour": {}, "presents": {}, "show": {}, "night": {}, "band": {},
	"orchestra": {}, "music": {}, "concert": {}, "special": {}, "guest": {}, "guests": {},
}

// contentTokens returns the normalized tokens of s that are three or more
// characters long and not filler words.
func contentTokens(s string) []string {
	var out []string
	for _, tok := range Tokens(s) {
		if len(tok) < 3 {
			continue
		}
		if _, filler := fillerTokens[tok]; filler {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// SharesToken reports whether two titles have a content token in common.
// Short tokens and filler words such as "the" or "live" are ignored.
func SharesToken(a, b string) bool {
	seen := make(map[string]struct{})
	for _, tok := range contentTokens(a) {
		seen[tok] = struct{}{}
	}
	for _, tok := range contentTokens(b) {
		if _, ok := seen[tok]; ok {
			return true
		}
	}
	return false
}

// NameMatch classifies how two performer names relate after normalization.
type NameMatch int

const (
	NameMismatch NameMatch = iota
	// NamePartial means one name contains the other or they share a token.
	NamePartial
	NameExact
)

// CompareNames returns the relation between a searched name and a returned name.
func CompareNames(query, candidate string) NameMatch {
	nq, nc := NormalizeTitle(query), NormalizeTitle(candidate)
	if nq == "" || nc == "" {
		return NameMismatch
	}
	if nq == nc {
		return NameExact
	}
	if len(contentTokens(nq)) == 0 || len(contentTokens(nc)) == 0 {
		return NameMismatch
	}
	if containsPhrase(nq, nc) || containsPhrase(nc, nq) || SharesToken(nq, nc) {
		return NamePartial
	}
	return NameMismatch
}

func (m NameMatch) String() string {
	switch m {
	case NameExact:
		return "exact"
	case NamePartial:
		return "partial"
	default:
		return "mismatch"
	}
}
