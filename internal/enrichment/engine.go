package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/services/kgsearch"
	"marquee/internal/services/llm"
	"marquee/internal/services/pacer"
	"marquee/internal/services/spotify"
	"marquee/internal/telemetry"
)

const (
	sourceLLM       = "llm"
	sourceSpotify   = "spotify"
	sourceKnowledge = "google_kg"
)

// Classifier is the primary classification source.
type Classifier interface {
	Configured() bool
	ClassifyEvent(ctx context.Context, prompt llm.EventPrompt) (llm.Classification, error)
}

// MusicCatalog resolves performers to music catalog artists.
type MusicCatalog interface {
	Configured() bool
	SearchArtist(ctx context.Context, performer string) (*spotify.Artist, error)
}

// KnowledgeGraph resolves names to knowledge graph entities.
type KnowledgeGraph interface {
	Configured() bool
	Search(ctx context.Context, query string) (*kgsearch.Entity, error)
}

// Dependencies bundles the enrichment sources. Nil members are treated as
// not configured.
type Dependencies struct {
	Classifier Classifier
	Music      MusicCatalog
	Knowledge  KnowledgeGraph
}

// Result describes the outcome of enriching one event.
type Result struct {
	Status          catalog.EnrichmentStatus
	CategoryUpdated bool
	Category        catalog.Category
}

// Engine runs the classification-driven enrichment pipeline.
type Engine struct {
	store        *catalog.Store
	deps         Dependencies
	logger       *slog.Logger
	defaultLoc   *time.Location
	eventPacer   *pacer.Pacer
	requestPacer *pacer.Pacer
	now          func() time.Time
}

// NewEngine constructs an enrichment engine with pacing taken from cfg.
func NewEngine(cfg *config.Config, store *catalog.Store, deps Dependencies, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		store:        store,
		deps:         deps,
		logger:       logging.NewComponentLogger(logger, "enrichment"),
		defaultLoc:   time.UTC,
		eventPacer:   pacer.New(0),
		requestPacer: pacer.New(0),
		now:          time.Now,
	}
	if cfg != nil {
		e.defaultLoc = cfg.DefaultLocation()
		e.eventPacer = pacer.New(cfg.EventDelay())
		e.requestPacer = pacer.New(cfg.RequestDelay())
	}
	return e
}

func (e *Engine) classifierReady() bool {
	return e.deps.Classifier != nil && e.deps.Classifier.Configured()
}

func (e *Engine) musicReady() bool {
	return e.deps.Music != nil && e.deps.Music.Configured()
}

func (e *Engine) knowledgeReady() bool {
	return e.deps.Knowledge != nil && e.deps.Knowledge.Configured()
}

// anySource reports whether at least one enrichment source can run.
func (e *Engine) anySource() bool {
	return e.classifierReady() || e.musicReady() || e.knowledgeReady()
}

// attempt collects what one enrichment pass produced.
type attempt struct {
	classification *catalog.ClassificationResult
	music          *catalog.MusicResult
	knowledge      *catalog.KnowledgeResult
	primaryErr     error
}

func (a *attempt) secondaryData() bool {
	return a.music != nil || a.knowledge != nil
}

// EnrichEvent runs one enrichment attempt for ev and persists the outcome.
func (e *Engine) EnrichEvent(ctx context.Context, ev *catalog.Event) (result Result, err error) {
	ctx, span := telemetry.StartEvent(ctx, "enrichment.event", ev.ID)
	defer func() { telemetry.End(span, err) }()
	return e.enrichEvent(ctx, ev)
}

func (e *Engine) enrichEvent(ctx context.Context, ev *catalog.Event) (Result, error) {
	ctx = services.WithEventID(ctx, ev.ID)
	logger := logging.WithContext(ctx, e.logger)

	prior, err := e.store.GetEnrichment(ctx, ev.ID)
	if err != nil {
		return Result{}, err
	}
	if !catalog.NeedsEnrichment(prior) {
		logger.Debug("enrichment not due",
			logging.String("status", string(prior.Status)),
			logging.Int("attempts", prior.Attempts),
		)
		return Result{Status: prior.Status, Category: ev.Category}, nil
	}
	attempts := 0
	if prior != nil {
		attempts = prior.Attempts
	}

	if !e.anySource() {
		rec := catalog.Enrichment{EventID: ev.ID, Status: catalog.EnrichmentSkipped, Attempts: attempts}
		if err := e.store.SaveEnrichment(ctx, rec); err != nil {
			return Result{}, err
		}
		return Result{Status: catalog.EnrichmentSkipped, Category: ev.Category}, nil
	}

	if err := e.store.MarkEnrichmentProcessing(ctx, ev.ID); err != nil {
		return Result{}, err
	}

	var run attempt
	if e.classifierReady() {
		e.classify(ctx, logger, ev, &run)
	} else {
		run.primaryErr = services.Wrap(services.ErrConfiguration, "enrichment", "classify", "classifier not configured", nil)
	}
	if run.classification != nil {
		e.targetedLookup(ctx, logger, run.classification, &run)
	} else {
		e.legacyLookup(ctx, logger, ev, &run)
	}

	result := Result{
		Status:   DeriveStatus(run.classification != nil, run.secondaryData()),
		Category: ev.Category,
	}
	if run.classification != nil {
		cls := run.classification
		if ShouldOverrideCategory(ev.Category, cls.Category, cls.Confidence) {
			if err := e.store.UpdateEventCategory(ctx, ev.ID, cls.Category); err != nil {
				e.recordFailure(ctx, logger, ev.ID, prior, attempts, err)
				return Result{}, err
			}
			logger.Info("event category updated",
				logging.Args(append(logging.DecisionAttrs("category_override", "applied", "classification "+string(cls.Confidence)),
					logging.String("from", string(ev.Category)),
					logging.String("to", string(cls.Category)),
				)...)...)
			result.CategoryUpdated = true
			result.Category = cls.Category
		} else if cls.Category != ev.Category {
			logger.Debug("event category kept",
				logging.Args(append(logging.DecisionAttrs("category_override", "rejected", "low confidence"),
					logging.String("current", string(ev.Category)),
					logging.String("classified", string(cls.Category)),
				)...)...)
		}
	}

	rec := catalog.Enrichment{
		EventID:        ev.ID,
		Status:         result.Status,
		Attempts:       attempts,
		Classification: run.classification,
		Music:          run.music,
		Knowledge:      run.knowledge,
	}
	if result.Status == catalog.EnrichmentFailed {
		rec.Attempts = attempts + 1
		rec.LastError = errorText(run.primaryErr)
		if prior != nil {
			rec.Classification = prior.Classification
			rec.Music = prior.Music
			rec.Knowledge = prior.Knowledge
		}
	}
	if err := e.store.SaveEnrichment(ctx, rec); err != nil {
		e.recordFailure(ctx, logger, ev.ID, prior, attempts, err)
		return Result{}, err
	}

	logger.Info("event enriched",
		logging.String("status", string(result.Status)),
		logging.Bool("classified", run.classification != nil),
		logging.Bool("music", run.music != nil),
		logging.Bool("knowledge", run.knowledge != nil),
		logging.Int("attempts", rec.Attempts),
	)
	return result, nil
}

// recordFailure moves a record out of processing after a store error so the
// attempt counts toward the retry ceiling. It is best effort.
func (e *Engine) recordFailure(ctx context.Context, logger *slog.Logger, eventID int64, prior *catalog.Enrichment, attempts int, cause error) {
	rec := catalog.Enrichment{
		EventID:   eventID,
		Status:    catalog.EnrichmentFailed,
		Attempts:  attempts + 1,
		LastError: cause.Error(),
	}
	if prior != nil {
		rec.Classification = prior.Classification
		rec.Music = prior.Music
		rec.Knowledge = prior.Knowledge
	}
	if err := e.store.SaveEnrichment(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logger, "enrichment failure not recorded", "enrichment_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database health"),
			logging.String(logging.FieldImpact, "the record stays in processing and is picked up again"),
		)
	}
}

func (e *Engine) classify(ctx context.Context, logger *slog.Logger, ev *catalog.Event, run *attempt) {
	loc := calendar.LoadLocation(ev.VenueTimezone, e.defaultLoc)
	prompt := llm.EventPrompt{
		Title:           ev.DisplayTitle(),
		Venue:           ev.VenueName,
		Date:            calendar.PromptDate(ev.StartsAt, loc),
		Description:     ev.Description,
		URL:             ev.URL,
		CurrentCategory: string(ev.Category),
		ExternalTags:    ev.Match.Metadata.Tags(),
	}
	cls, err := e.deps.Classifier.ClassifyEvent(ctx, prompt)
	if err != nil {
		run.primaryErr = err
		logging.WarnWithContext(logger, "event classification failed", "enrichment_classify_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm credentials and availability"),
			logging.String(logging.FieldImpact, "falling back to knowledge graph lookup on the raw title"),
		)
		return
	}
	run.classification = &catalog.ClassificationResult{
		Source:      sourceLLM,
		FetchedAt:   e.now().UTC(),
		Category:    catalog.CoerceCategory(cls.Category),
		Performer:   cls.PerformerName(),
		Description: cls.Description,
		Confidence:  catalog.CoerceConfidence(cls.Confidence),
	}
}

// targetedLookup runs the one secondary source the classified category allows.
func (e *Engine) targetedLookup(ctx context.Context, logger *slog.Logger, cls *catalog.ClassificationResult, run *attempt) {
	switch SecondaryLookup(cls.Category, cls.Performer) {
	case LookupMusic:
		run.music = e.lookupMusic(ctx, logger, cls.Performer)
	case LookupKnowledge:
		run.knowledge = e.lookupKnowledge(ctx, logger, cls.Performer)
	}
}

// legacyLookup searches the knowledge graph by raw title and follows up in
// the music catalog when the entity is a music entity.
func (e *Engine) legacyLookup(ctx context.Context, logger *slog.Logger, ev *catalog.Event, run *attempt) {
	run.knowledge = e.lookupKnowledge(ctx, logger, ev.Title)
	if run.knowledge == nil || !isMusicTypes(run.knowledge.Types) {
		return
	}
	run.music = e.lookupMusic(ctx, logger, run.knowledge.Name)
}

func (e *Engine) lookupMusic(ctx context.Context, logger *slog.Logger, performer string) *catalog.MusicResult {
	if !e.musicReady() || strings.TrimSpace(performer) == "" {
		return nil
	}
	if err := e.requestPacer.Wait(ctx); err != nil {
		return nil
	}
	artist, err := e.deps.Music.SearchArtist(ctx, performer)
	if err != nil {
		logSecondaryFailure(logger, "music catalog lookup failed", "enrichment_music_failed", err)
		return nil
	}
	if artist == nil {
		return nil
	}
	return &catalog.MusicResult{
		Source:     sourceSpotify,
		FetchedAt:  e.now().UTC(),
		ID:         artist.ID,
		Name:       artist.Name,
		URL:        artist.URL,
		Genres:     artist.Genres,
		Popularity: artist.Popularity,
		ImageURL:   artist.ImageURL,
		MatchType:  artist.MatchType.String(),
	}
}

func (e *Engine) lookupKnowledge(ctx context.Context, logger *slog.Logger, query string) *catalog.KnowledgeResult {
	if !e.knowledgeReady() || strings.TrimSpace(query) == "" {
		return nil
	}
	if err := e.requestPacer.Wait(ctx); err != nil {
		return nil
	}
	entity, err := e.deps.Knowledge.Search(ctx, query)
	if err != nil {
		logSecondaryFailure(logger, "knowledge graph lookup failed", "enrichment_knowledge_failed", err)
		return nil
	}
	if entity == nil {
		return nil
	}
	return &catalog.KnowledgeResult{
		Source:      sourceKnowledge,
		FetchedAt:   e.now().UTC(),
		ID:          entity.ID,
		Name:        entity.Name,
		Description: entity.Description,
		Bio:         entity.Bio,
		ImageURL:    entity.ImageURL,
		URL:         entity.URL,
		Types:       entity.Types,
		Score:       entity.Score,
	}
}

func logSecondaryFailure(logger *slog.Logger, msg, eventType string, err error) {
	logging.WarnWithContext(logger, msg, eventType,
		logging.String("error_kind", services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the service credentials; the lookup is treated as empty"),
		logging.String(logging.FieldImpact, "enrichment continues without this source"),
	)
}

func isMusicTypes(types []string) bool {
	return (&kgsearch.Entity{Types: types}).IsMusic()
}

func errorText(err error) string {
	if err == nil {
		return "no enrichment data returned"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "classifier not configured and no fallback data"
	}
	return err.Error()
}
