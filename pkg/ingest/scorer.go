package ingest

import (
	"time"

	"github.com/acorn-news/cubafeed/pkg/domain"
)

// RecencyScorer is the default scoring strategy: fresher articles score
// higher, with small bonuses for carrying an image and tags. Any Scorer
// implementation can replace it; the engine does not depend on the formula.
type RecencyScorer struct {
	now func() time.Time
}

// NewRecencyScorer creates the default scorer.
func NewRecencyScorer() *RecencyScorer {
	return &RecencyScorer{now: time.Now}
}

// Score maps hours-until-stale into an integer rank.
func (s *RecencyScorer) Score(c domain.Candidate) int {
	age := s.now().Sub(c.Published)
	if age < 0 {
		age = 0
	}

	hoursLeft := int((72*time.Hour - age) / time.Hour)
	if hoursLeft < 0 {
		hoursLeft = 0
	}

	score := hoursLeft
	if c.ImageURL != "" {
		score += 5
	}
	if len(c.Tags) > 0 {
		score += 2
	}
	return score
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(c domain.Candidate) int

// Score calls f.
func (f ScorerFunc) Score(c domain.Candidate) int { return f(c) }
