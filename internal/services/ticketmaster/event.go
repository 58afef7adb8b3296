package ticketmaster

import (
	"strings"
	"time"

	"marquee/internal/catalog"
)

type searchResponse struct {
	Embedded struct {
		Events []Event `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

// Event is the subset of a Discovery event the catalog consumes.
type Event struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Info       string `json:"info"`
	PleaseNote string `json:"pleaseNote"`
	Dates      struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
			DateTime  string `json:"dateTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
		Status   struct {
			Code string `json:"code"`
		} `json:"status"`
	} `json:"dates"`
	Sales struct {
		Public struct {
			StartDateTime string `json:"startDateTime"`
			EndDateTime   string `json:"endDateTime"`
		} `json:"public"`
		Presales []struct {
			Name          string `json:"name"`
			StartDateTime string `json:"startDateTime"`
			EndDateTime   string `json:"endDateTime"`
		} `json:"presales"`
	} `json:"sales"`
	Seatmap struct {
		StaticURL string `json:"staticUrl"`
	} `json:"seatmap"`
	Classifications []struct {
		Primary  bool `json:"primary"`
		Segment  name `json:"segment"`
		Genre    name `json:"genre"`
		SubGenre name `json:"subGenre"`
	} `json:"classifications"`
	Promoter name `json:"promoter"`
	Images   []struct {
		URL    string `json:"url"`
		Ratio  string `json:"ratio"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
	Embedded struct {
		Venues []struct {
			ID string `json:"id"`
		} `json:"venues"`
		Attractions []name `json:"attractions"`
	} `json:"_embedded"`
}

type name struct {
	Name string `json:"name"`
}

// StartsAt returns the UTC start instant when the API provided one.
func (e Event) StartsAt() *time.Time {
	return parseInstant(e.Dates.Start.DateTime)
}

// LocalTime returns the venue-local start as HH:MM, or "" when unknown.
func (e Event) LocalTime() string {
	value := strings.TrimSpace(e.Dates.Start.LocalTime)
	if len(value) >= 5 {
		return value[:5]
	}
	return value
}

// Metadata builds the bundle attached to a matched canonical event.
func (e Event) Metadata() catalog.ExternalMetadata {
	meta := catalog.ExternalMetadata{
		OnSaleStart: parseInstant(e.Sales.Public.StartDateTime),
		OnSaleEnd:   parseInstant(e.Sales.Public.EndDateTime),
		SeatMapURL:  strings.TrimSpace(e.Seatmap.StaticURL),
		Promoter:    strings.TrimSpace(e.Promoter.Name),
		StatusCode:  strings.ToLower(strings.TrimSpace(e.Dates.Status.Code)),
		Info:        firstNonEmpty(e.Info, e.PleaseNote),
		ExternalURL: strings.TrimSpace(e.URL),
	}
	for _, presale := range e.Sales.Presales {
		meta.Presales = append(meta.Presales, catalog.Presale{
			Name:     strings.TrimSpace(presale.Name),
			StartsAt: parseInstant(presale.StartDateTime),
			EndsAt:   parseInstant(presale.EndDateTime),
		})
	}
	if len(e.Embedded.Attractions) > 1 {
		for _, act := range e.Embedded.Attractions[1:] {
			if n := strings.TrimSpace(act.Name); n != "" {
				meta.SupportingActs = append(meta.SupportingActs, n)
			}
		}
	}
	for i, cls := range e.Classifications {
		if cls.Primary || i == len(e.Classifications)-1 {
			meta.Segment = strings.TrimSpace(cls.Segment.Name)
			meta.Genre = strings.TrimSpace(cls.Genre.Name)
			meta.SubGenre = strings.TrimSpace(cls.SubGenre.Name)
			break
		}
	}
	meta.PrimaryImageURL = e.primaryImage()
	return meta
}

// CacheRecord maps the event onto a ticket cache row for venueSlug. Events
// without an id or a local date are not cacheable and return false.
func (e Event) CacheRecord(venueSlug, ticketVenueID string) (catalog.CacheRecord, bool) {
	id := strings.TrimSpace(e.ID)
	localDate := strings.TrimSpace(e.Dates.Start.LocalDate)
	if id == "" || localDate == "" {
		return catalog.CacheRecord{}, false
	}
	return catalog.CacheRecord{
		ExternalID:    id,
		VenueSlug:     venueSlug,
		TicketVenueID: ticketVenueID,
		LocalDate:     localDate,
		Name:          strings.TrimSpace(e.Name),
		LocalTime:     e.LocalTime(),
		StartsAt:      e.StartsAt(),
		Metadata:      e.Metadata(),
	}, true
}

// primaryImage prefers the widest 16:9 image, then the first image listed.
func (e Event) primaryImage() string {
	best, bestWidth, fallback := "", -1, ""
	for _, img := range e.Images {
		imageURL := strings.TrimSpace(img.URL)
		if imageURL == "" {
			continue
		}
		if fallback == "" {
			fallback = imageURL
		}
		if img.Ratio == "16_9" && img.Width > bestWidth {
			best, bestWidth = imageURL, img.Width
		}
	}
	if best == "" {
		return fallback
	}
	return best
}

func parseInstant(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
