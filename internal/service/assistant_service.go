package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/search"
	appErrors "github.com/noah-isme/achievement-registry-api/pkg/errors"
)

// Assistant response types.
const (
	AssistantTypeResults       = "results"
	AssistantTypeClarification = "clarification"
)

// AssistantResult is the answer to one natural-language query.
type AssistantResult struct {
	Type         string               `json:"type"`
	Message      string               `json:"message,omitempty"`
	Filters      *search.Filters      `json:"filters,omitempty"`
	Strategy     search.Strategy      `json:"strategy,omitempty"`
	Achievements []models.Achievement `json:"achievements"`
}

// AssistantService answers free-form prompts by extracting filters and running
// them through the search executor.
type AssistantService struct {
	lookup   search.Lookup
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewAssistantService constructs the service.
func NewAssistantService(lookup search.Lookup, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AssistantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantService{lookup: lookup, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// Query parses prompt and executes it. The boolean indicates whether results
// came from cache. A vague prompt is not an error: it yields a clarification.
func (s *AssistantService) Query(ctx context.Context, prompt string) (*AssistantResult, bool, error) {
	extracted := search.Extract(prompt)
	if extracted.NeedsClarification() {
		s.metrics.RecordAssistantQuery(AssistantTypeClarification, string(search.StrategyNone))
		return &AssistantResult{
			Type:         AssistantTypeClarification,
			Message:      extracted.Message,
			Achievements: []models.Achievement{},
		}, false, nil
	}

	filters := extracted.Filters
	strategy := search.ChooseStrategy(filters)
	cacheKey := assistantCacheKey(filters)

	var cached []models.Achievement
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("assistant cache read", zap.Error(err))
		} else if hit {
			s.metrics.RecordAssistantQuery(AssistantTypeResults, string(strategy))
			return &AssistantResult{Type: AssistantTypeResults, Filters: &filters, Strategy: strategy, Achievements: cached}, true, nil
		}
	}

	items, err := search.Execute(ctx, filters, s.lookup)
	if err != nil {
		s.metrics.RecordAssistantQuery("error", string(strategy))
		return nil, false, appErrors.FromError(err)
	}
	s.metrics.RecordAssistantQuery(AssistantTypeResults, string(strategy))
	s.logger.Debug("assistant query",
		zap.String("strategy", string(strategy)),
		zap.Int("results", len(items)))

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, items, s.cacheTTL); err != nil {
			s.logger.Warn("assistant cache write", zap.Error(err))
		}
	}
	return &AssistantResult{Type: AssistantTypeResults, Filters: &filters, Strategy: strategy, Achievements: items}, false, nil
}

func assistantCacheKey(f search.Filters) string {
	var b strings.Builder
	b.WriteString("assistant")
	if f.StudentID != nil {
		b.WriteString(":sid=")
		b.WriteString(strings.ReplaceAll(*f.StudentID, ":", "|"))
	}
	if f.Category != nil {
		b.WriteString(":cat=")
		b.WriteString(string(*f.Category))
	}
	if f.Year != nil {
		b.WriteString(":year=")
		b.WriteString(strconv.Itoa(*f.Year))
	}
	if len(f.TextTerms) > 0 {
		b.WriteString(":terms=")
		b.WriteString(strings.Join(f.TextTerms, ","))
	}
	return b.String()
}
