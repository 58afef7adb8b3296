package catalog

import (
	"strings"
	"time"
)

// Source identifies where a record was produced.
type Source string

const (
	SourceScraper      Source = "scraper"
	SourceTicketmaster Source = "ticketmaster"
	SourceManual       Source = "manual"
	SourceFeed         Source = "feed"
)

var sourceSet = map[Source]struct{}{
	SourceScraper:      {},
	SourceTicketmaster: {},
	SourceManual:       {},
	SourceFeed:         {},
}

// ParseSource normalizes and validates a source value.
func ParseSource(value string) (Source, bool) {
	s := Source(strings.ToLower(strings.TrimSpace(value)))
	_, ok := sourceSet[s]
	return s, ok
}

// Category is the canonical event category.
type Category string

const (
	CategoryConcert  Category = "CONCERT"
	CategoryComedy   Category = "COMEDY"
	CategoryTheater  Category = "THEATER"
	CategoryMovie    Category = "MOVIE"
	CategorySports   Category = "SPORTS"
	CategoryFestival Category = "FESTIVAL"
	CategoryOther    Category = "OTHER"
)

var categorySet = map[Category]struct{}{
	CategoryConcert:  {},
	CategoryComedy:   {},
	CategoryTheater:  {},
	CategoryMovie:    {},
	CategorySports:   {},
	CategoryFestival: {},
	CategoryOther:    {},
}

// ParseCategory normalizes a category. Unknown or empty values return ("", false).
func ParseCategory(value string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(value)))
	if c == "THEATRE" {
		c = CategoryTheater
	}
	_, ok := categorySet[c]
	if !ok {
		return "", false
	}
	return c, true
}

// CoerceCategory maps any value onto the enum, defaulting to OTHER.
func CoerceCategory(value string) Category {
	if c, ok := ParseCategory(value); ok {
		return c
	}
	return CategoryOther
}

// EventStatus is the lifecycle state of a canonical event.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventCancelled EventStatus = "cancelled"
	EventPostponed EventStatus = "postponed"
	EventSoldOut   EventStatus = "soldout"
)

// Confidence is the classification confidence tier.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CoerceConfidence maps any value onto the tier enum, defaulting to medium.
func CoerceConfidence(value string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(value))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// Venue is a physical location events are bucketed under.
type Venue struct {
	ID            int64
	Slug          string
	Name          string
	City          string
	Timezone      string
	TicketVenueID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizedRecord is the contract every source adapter produces.
type NormalizedRecord struct {
	VenueSlug     string     `json:"venue" yaml:"venue"`
	Title         string     `json:"title" yaml:"title"`
	StartsAt      time.Time  `json:"starts_at" yaml:"starts_at"`
	EndsAt        *time.Time `json:"ends_at,omitempty" yaml:"ends_at,omitempty"`
	CategoryHint  string     `json:"category,omitempty" yaml:"category,omitempty"`
	Source        string     `json:"source" yaml:"source"`
	SourceEventID string     `json:"source_event_id,omitempty" yaml:"source_event_id,omitempty"`
	URL           string     `json:"url,omitempty" yaml:"url,omitempty"`
	ImageURL      string     `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Event is a durable canonical event row.
type Event struct {
	ID              int64
	VenueID         int64
	VenueSlug       string
	VenueName       string
	VenueTimezone   string
	Source          Source
	SourceEventID   string
	Title           string
	NormalizedTitle string
	Description     string
	URL             string
	ImageURL        string
	StartsAt        time.Time
	EndsAt          *time.Time
	Category        Category
	Status          EventStatus
	Match           MatchDecision
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplayTitle returns the external title when the match decision prefers it.
func (e Event) DisplayTitle() string {
	if e.Match.PreferExternalTitle && e.Match.MatchedName != "" {
		return e.Match.MatchedName
	}
	return e.Title
}

// MatchDecision is the embedded cross-source match state of an event.
type MatchDecision struct {
	ExternalID          string
	MatchedName         string
	Confidence          float64
	PreferExternalTitle bool
	CheckedAt           *time.Time
	Metadata            *ExternalMetadata
}

// Matched reports whether a counterpart has been accepted.
func (m MatchDecision) Matched() bool {
	return m.ExternalID != ""
}

// Presale is one presale window.
type Presale struct {
	Name     string     `json:"name"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// ExternalMetadata is the bundle attached on match acceptance.
type ExternalMetadata struct {
	OnSaleStart     *time.Time `json:"on_sale_start,omitempty"`
	OnSaleEnd       *time.Time `json:"on_sale_end,omitempty"`
	Presales        []Presale  `json:"presales,omitempty"`
	SeatMapURL      string     `json:"seat_map_url,omitempty"`
	SupportingActs  []string   `json:"supporting_acts,omitempty"`
	Segment         string     `json:"segment,omitempty"`
	Genre           string     `json:"genre,omitempty"`
	SubGenre        string     `json:"sub_genre,omitempty"`
	Promoter        string     `json:"promoter,omitempty"`
	StatusCode      string     `json:"status_code,omitempty"`
	Info            string     `json:"info,omitempty"`
	ExternalURL     string     `json:"external_url,omitempty"`
	PrimaryImageURL string     `json:"primary_image_url,omitempty"`
}

// Tags returns the non-empty classification tags, broadest first.
func (m *ExternalMetadata) Tags() []string {
	if m == nil {
		return nil
	}
	var tags []string
	for _, tag := range []string{m.Segment, m.Genre, m.SubGenre} {
		if tag = strings.TrimSpace(tag); tag != "" && !strings.EqualFold(tag, "Undefined") {
			tags = append(tags, tag)
		}
	}
	return tags
}

// CacheRecord is one row of the ticket-platform snapshot.
type CacheRecord struct {
	ExternalID    string
	VenueSlug     string
	TicketVenueID string
	LocalDate     string
	Name          string
	LocalTime     string
	StartsAt      *time.Time
	Metadata      ExternalMetadata
	FetchedAt     time.Time
}

// EnrichmentStatus is the persisted enrichment state.
type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentProcessing EnrichmentStatus = "processing"
	EnrichmentCompleted  EnrichmentStatus = "completed"
	EnrichmentPartial    EnrichmentStatus = "partial"
	EnrichmentFailed     EnrichmentStatus = "failed"
	EnrichmentSkipped    EnrichmentStatus = "skipped"
)

// MaxEnrichmentAttempts is the retry ceiling for failed enrichment.
const MaxEnrichmentAttempts = 3

// EligibleForRetry reports whether a failed record should be re-selected.
func EligibleForRetry(status EnrichmentStatus, attempts int) bool {
	return status == EnrichmentFailed && attempts < MaxEnrichmentAttempts
}

// NeedsEnrichment reports whether an event whose record is rec is due for an
// attempt. A nil record means the event was never attempted.
// EventsNeedingEnrichment encodes the same rule in SQL.
func NeedsEnrichment(rec *Enrichment) bool {
	if rec == nil {
		return true
	}
	switch rec.Status {
	case EnrichmentPending:
		return true
	case EnrichmentProcessing:
		return rec.Attempts < MaxEnrichmentAttempts
	default:
		return EligibleForRetry(rec.Status, rec.Attempts)
	}
}

// ClassificationResult is the primary classifier's provenance entry.
type ClassificationResult struct {
	Source      string     `json:"source"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Category    Category   `json:"category"`
	Performer   string     `json:"performer,omitempty"`
	Description string     `json:"description,omitempty"`
	Confidence  Confidence `json:"confidence"`
}

// MusicResult is the music-catalog provenance entry.
type MusicResult struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	Genres     []string  `json:"genres,omitempty"`
	Popularity int       `json:"popularity"`
	ImageURL   string    `json:"image_url,omitempty"`
	MatchType  string    `json:"match_type"`
}

// KnowledgeResult is the knowledge-graph provenance entry.
type KnowledgeResult struct {
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	URL         string    `json:"url,omitempty"`
	Types       []string  `json:"types,omitempty"`
	Score       float64   `json:"score"`
}

// Enrichment is the single enrichment record of an event.
type Enrichment struct {
	ID             int64
	EventID        int64
	Status         EnrichmentStatus
	Attempts       int
	LastError      string
	Classification *ClassificationResult
	Music          *MusicResult
	Knowledge      *KnowledgeResult
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
