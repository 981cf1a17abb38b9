package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

// Lookup is the set of primitive reads the executor may issue.
type Lookup interface {
	ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error)
	ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error)
	Search(ctx context.Context, term string) ([]models.Achievement, error)
}

// Strategy names the primitive lookup used to answer a query.
type Strategy string

const (
	StrategyStudentID Strategy = "student_id"
	StrategyCategory  Strategy = "category"
	StrategyText      Strategy = "text"
	StrategyNone      Strategy = "none"
)

// ChooseStrategy picks exactly one lookup in priority order.
func ChooseStrategy(f Filters) Strategy {
	switch {
	case f.StudentID != nil:
		return StrategyStudentID
	case f.Category != nil:
		return StrategyCategory
	case len(f.TextTerms) > 0:
		return StrategyText
	default:
		return StrategyNone
	}
}

// Execute runs the chosen lookup then narrows the results by whatever the
// lookup did not already enforce. Store order is preserved.
func Execute(ctx context.Context, f Filters, store Lookup) ([]models.Achievement, error) {
	strategy := ChooseStrategy(f)

	var (
		items []models.Achievement
		err   error
	)
	switch strategy {
	case StrategyStudentID:
		items, err = store.ListByStudentID(ctx, *f.StudentID)
	case StrategyCategory:
		items, err = store.ListVerifiedByCategory(ctx, *f.Category)
	case StrategyText:
		items, err = store.Search(ctx, strings.Join(f.TextTerms, " "))
	case StrategyNone:
		return []models.Achievement{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search by %s: %w", strategy, err)
	}

	if f.Category != nil && strategy == StrategyStudentID {
		items = filter(items, func(a models.Achievement) bool { return a.Category == *f.Category })
	}
	if f.Year != nil {
		items = filter(items, func(a models.Achievement) bool { return a.Date.Year() == *f.Year })
	}
	if len(f.TextTerms) > 0 && strategy == StrategyStudentID {
		terms := make([]string, len(f.TextTerms))
		for i, t := range f.TextTerms {
			terms[i] = strings.ToLower(t)
		}
		items = filter(items, func(a models.Achievement) bool {
			text := strings.ToLower(a.Title + " " + a.Description)
			for _, t := range terms {
				if strings.Contains(text, t) {
					return true
				}
			}
			return false
		})
	}

	if items == nil {
		items = []models.Achievement{}
	}
	return items, nil
}

func filter(items []models.Achievement, keep func(models.Achievement) bool) []models.Achievement {
	out := make([]models.Achievement, 0, len(items))
	for _, a := range items {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
