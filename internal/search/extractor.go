// Package search turns free-form assistant prompts into structured filters and
// runs them against the achievement store.
package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

// ClarificationMessage is returned when a prompt carries nothing searchable.
const ClarificationMessage = "I need more information to search. Please try:\n\n" +
	"• \"Show projects for student STU12345\"\n" +
	"• \"Find hackathon wins in 2024\"\n" +
	"• \"Search for machine learning projects\"\n" +
	"• \"Show all verified certificates\""

// Filters is the structured query derived from a prompt.
type Filters struct {
	StudentID *string                     `json:"studentId,omitempty" yaml:"studentId,omitempty"`
	Category  *models.AchievementCategory `json:"category,omitempty" yaml:"category,omitempty"`
	TextTerms []string                    `json:"textTerms" yaml:"textTerms"`
	Year      *int                        `json:"year,omitempty" yaml:"year,omitempty"`
}

// ExtractResult is either a populated Filters or a clarification request.
type ExtractResult struct {
	Filters Filters
	Message string
	clarify bool
}

// NeedsClarification reports whether the prompt was too vague to search.
func (r ExtractResult) NeedsClarification() bool {
	return r.clarify
}

type field int

const (
	fieldStudentID field = iota
	fieldCategory
	fieldYear
)

// fieldRule extracts one filter field. Rules for the same field are tried in
// order and the first match wins. A bare year is never taken as a student id.
type fieldRule struct {
	field    field
	pattern  *regexp.Regexp
	exclude  *regexp.Regexp
	keywords []string
	category models.AchievementCategory
}

var yearToken = regexp.MustCompile(`^20\d{2}$`)

var rules = []fieldRule{
	{field: fieldStudentID, pattern: regexp.MustCompile(`(?i)\b(stu\d+|\d{4,})\b`), exclude: yearToken},
	{field: fieldCategory, keywords: []string{"project"}, category: models.CategoryProject},
	{field: fieldCategory, keywords: []string{"research", "paper"}, category: models.CategoryResearchPaper},
	{field: fieldCategory, keywords: []string{"hackathon"}, category: models.CategoryHackathon},
	{field: fieldCategory, keywords: []string{"certificate"}, category: models.CategoryCertificate},
	{field: fieldYear, pattern: regexp.MustCompile(`\b(20\d{2})\b`)},
}

var stopWords = map[string]struct{}{
	"show": {}, "find": {}, "search": {}, "get": {}, "list": {}, "display": {},
	"for": {}, "student": {}, "the": {}, "all": {}, "in": {}, "from": {},
	"with": {}, "about": {}, "of": {}, "by": {},
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Extract parses prompt. It never fails: unusable input yields a clarification.
func Extract(prompt string) ExtractResult {
	lower := strings.ToLower(prompt)
	filters := Filters{TextTerms: []string{}}

	for _, rule := range rules {
		switch rule.field {
		case fieldStudentID:
			if filters.StudentID != nil {
				continue
			}
			for _, m := range rule.pattern.FindAllString(prompt, -1) {
				if rule.exclude != nil && rule.exclude.MatchString(m) {
					continue
				}
				id := strings.ToUpper(m)
				filters.StudentID = &id
				break
			}
		case fieldCategory:
			if filters.Category != nil {
				continue
			}
			for _, kw := range rule.keywords {
				if strings.Contains(lower, kw) {
					c := rule.category
					filters.Category = &c
					break
				}
			}
		case fieldYear:
			if filters.Year != nil {
				continue
			}
			if m := rule.pattern.FindString(prompt); m != "" {
				if year, err := strconv.Atoi(m); err == nil {
					filters.Year = &year
				}
			}
		}
	}

	filters.TextTerms = textTerms(lower, filters.StudentID)

	if filters.StudentID == nil && filters.Category == nil && len(filters.TextTerms) == 0 {
		return ExtractResult{Message: ClarificationMessage, clarify: true}
	}
	return ExtractResult{Filters: filters}
}

// textTerms drops every year-shaped token, not only the one kept as the filter.
func textTerms(lower string, studentID *string) []string {
	var idLower string
	if studentID != nil {
		idLower = strings.ToLower(*studentID)
	}

	terms := []string{}
	for _, word := range strings.Fields(nonWord.ReplaceAllString(lower, " ")) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if isCategoryKeyword(word) {
			continue
		}
		if idLower != "" && strings.Contains(word, idLower) {
			continue
		}
		if yearToken.MatchString(word) {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// isCategoryKeyword matches a category keyword or its plural.
func isCategoryKeyword(word string) bool {
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if word == kw || word == kw+"s" {
				return true
			}
		}
	}
	return false
}
