package services

import (
	"strings"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

// MatcherService filters out postings from employers the user never wants to see.
type MatcherService struct{}

func NewMatcherService() *MatcherService {
	return &MatcherService{}
}

// BlockedKeyword returns the first keyword contained in employer, case-insensitively,
// or "" when none match.
func (s *MatcherService) BlockedKeyword(employer string, keywords []string) string {
	employer = strings.ToLower(strings.TrimSpace(employer))
	if employer == "" {
		return ""
	}
	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k == "" {
			continue
		}
		if strings.Contains(employer, k) {
			return keyword
		}
	}
	return ""
}

// FilterBlocked splits postings into the ones to keep and the number dropped.
func (s *MatcherService) FilterBlocked(postings []models.CreateJobInput, keywords []string) ([]models.CreateJobInput, int) {
	if len(keywords) == 0 {
		return postings, 0
	}
	kept := make([]models.CreateJobInput, 0, len(postings))
	for _, p := range postings {
		if s.BlockedKeyword(p.Employer, keywords) != "" {
			continue
		}
		kept = append(kept, p)
	}
	return kept, len(postings) - len(kept)
}
