package enrichment

import "marquee/internal/catalog"

// Lookup names the secondary source a category is routed to.
type Lookup string

const (
	LookupNone      Lookup = ""
	LookupMusic     Lookup = "music"
	LookupKnowledge Lookup = "knowledge"
)

// SecondaryLookup returns which secondary source may run for a classified
// category. Knowledge lookups need an extracted performer; music lookups
// search by performer as well.
func SecondaryLookup(category catalog.Category, performer string) Lookup {
	if performer == "" {
		return LookupNone
	}
	switch category {
	case catalog.CategoryConcert:
		return LookupMusic
	case catalog.CategoryComedy, catalog.CategoryTheater, catalog.CategoryMovie:
		return LookupKnowledge
	default:
		return LookupNone
	}
}

// ShouldOverrideCategory reports whether a classification replaces the
// current category. OTHER is always replaceable; anything else only by a
// confident, different classification.
func ShouldOverrideCategory(current, classified catalog.Category, confidence catalog.Confidence) bool {
	if classified == "" || classified == current {
		return false
	}
	if current == catalog.CategoryOther || current == "" {
		return true
	}
	return confidence != catalog.ConfidenceLow
}

// DeriveStatus maps what an attempt produced onto the persisted status.
func DeriveStatus(primaryOK, secondaryData bool) catalog.EnrichmentStatus {
	switch {
	case primaryOK && secondaryData:
		return catalog.EnrichmentCompleted
	case primaryOK || secondaryData:
		return catalog.EnrichmentPartial
	default:
		return catalog.EnrichmentFailed
	}
}
