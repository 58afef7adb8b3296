package llm

import (
	"context"
	"fmt"
	"strings"

	"marquee/internal/services"
)

// EventPrompt describes one listing for classification.
type EventPrompt struct {
	Title           string
	Venue           string
	Date            string
	Description     string
	URL             string
	CurrentCategory string
	ExternalTags    []string
}

// Classification is the decoded classification payload. Category and Confidence are
// returned as the model produced them; callers coerce them into their own enums.
type Classification struct {
	Category    string  `json:"category"`
	Performer   *string `json:"performer"`
	Description string  `json:"description"`
	Confidence  string  `json:"confidence"`
	Raw         string  `json:"-"`
}

// PerformerName returns the trimmed performer or "" when the model returned null.
func (c Classification) PerformerName() string {
	if c.Performer == nil {
		return ""
	}
	return strings.TrimSpace(*c.Performer)
}

// ClassifyEvent issues one classification request for the supplied listing.
func (c *Client) ClassifyEvent(ctx context.Context, prompt EventPrompt) (Classification, error) {
	var empty Classification
	if strings.TrimSpace(prompt.Title) == "" {
		return empty, services.Wrap(services.ErrValidation, "llm", "classify", "title required", nil)
	}
	content, err := c.CompleteJSON(ctx, EventClassificationPrompt, buildEventUserPrompt(prompt))
	if err != nil {
		return empty, err
	}
	var parsed Classification
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrMalformedResponse, "llm", "classify", "parse payload", err)
	}
	parsed.Raw = content
	parsed.Category = strings.ToUpper(strings.TrimSpace(parsed.Category))
	parsed.Confidence = strings.ToLower(strings.TrimSpace(parsed.Confidence))
	parsed.Description = strings.TrimSpace(parsed.Description)
	return parsed, nil
}

func buildEventUserPrompt(prompt EventPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(prompt.Title))
	if v := strings.TrimSpace(prompt.Venue); v != "" {
		fmt.Fprintf(&b, "Venue: %s\n", v)
	}
	if v := strings.TrimSpace(prompt.Date); v != "" {
		fmt.Fprintf(&b, "Date: %s\n", v)
	}
	if v := strings.TrimSpace(prompt.Description); v != "" {
		fmt.Fprintf(&b, "Listing description: %s\n", v)
	}
	if v := strings.TrimSpace(prompt.URL); v != "" {
		fmt.Fprintf(&b, "URL: %s\n", v)
	}
	if v := strings.TrimSpace(prompt.CurrentCategory); v != "" {
		fmt.Fprintf(&b, "Current category: %s\n", v)
	}
	if len(prompt.ExternalTags) > 0 {
		fmt.Fprintf(&b, "Ticketing classification: %s\n", strings.Join(prompt.ExternalTags, " / "))
	}
	return b.String()
}

// ArbitrationCandidate is one ticket listing offered to the model.
type ArbitrationCandidate struct {
	Name      string
	LocalTime string
}

// ArbitrationRequest describes the venue listing and its ranked candidates.
type ArbitrationRequest struct {
	Title      string
	Venue      string
	Date       string
	LocalTime  string
	Candidates []ArbitrationCandidate
}

// Arbitration is the decoded arbitration payload. Index is nil when the model
// reported no match; bounds are not checked here.
type Arbitration struct {
	Index               *int   `json:"index"`
	PreferExternalTitle bool   `json:"prefer_external_title"`
	Reason              string `json:"reason"`
	Raw                 string `json:"-"`
}

// ArbitrateMatch asks the model which candidate, if any, is the same event.
func (c *Client) ArbitrateMatch(ctx context.Context, req ArbitrationRequest) (Arbitration, error) {
	var empty Arbitration
	if len(req.Candidates) == 0 {
		return empty, services.Wrap(services.ErrValidation, "llm", "arbitrate", "candidates required", nil)
	}
	content, err := c.CompleteJSON(ctx, MatchArbitrationPrompt, buildArbitrationUserPrompt(req))
	if err != nil {
		return empty, err
	}
	var parsed Arbitration
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrMalformedResponse, "llm", "arbitrate", "parse payload", err)
	}
	parsed.Raw = content
	parsed.Reason = strings.TrimSpace(parsed.Reason)
	return parsed, nil
}

func buildArbitrationUserPrompt(req ArbitrationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Venue listing: %s\n", strings.TrimSpace(req.Title))
	if req.Venue != "" {
		fmt.Fprintf(&b, "Venue: %s\n", req.Venue)
	}
	if req.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", req.Date)
	}
	if req.LocalTime != "" {
		fmt.Fprintf(&b, "Listed time: %s\n", req.LocalTime)
	}
	b.WriteString("Candidates:\n")
	for i, cand := range req.Candidates {
		localTime := cand.LocalTime
		if localTime == "" {
			localTime = "time unknown"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i, strings.TrimSpace(cand.Name), localTime)
	}
	return b.String()
}
