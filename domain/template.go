package domain

import "time"

// EvaluationTemplate groups the categories and questions used for a cycle.
type EvaluationTemplate struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Active      bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
}

type Category struct {
	ID         uint   `gorm:"primaryKey"`
	TemplateID uint   `gorm:"not null;index"`
	Name       string `gorm:"size:255;not null"`
	SortOrder  int    `gorm:"not null;default:0"`
}

// GradeBand is a closed score interval describing one grade letter of a question.
type GradeBand struct {
	Min         float64
	Max         float64
	Description string `gorm:"type:text"`
}

func (b GradeBand) Contains(score float64) bool {
	return b.Max > b.Min && score >= b.Min && score <= b.Max
}

// Question is a scored evaluation item. Answers must fall within
// [MinScore, MaxScore]; Weight is only used by the weighted aggregator.
type Question struct {
	ID         uint    `gorm:"primaryKey"`
	CategoryID uint    `gorm:"not null;index"`
	Text       string  `gorm:"type:text;not null"`
	MinScore   float64 `gorm:"not null;default:0"`
	MaxScore   float64 `gorm:"not null;default:5"`
	Weight     float64 `gorm:"not null;default:1"`
	SortOrder  int     `gorm:"not null;default:0"`

	BandA GradeBand `gorm:"embedded;embeddedPrefix:band_a_"`
	BandB GradeBand `gorm:"embedded;embeddedPrefix:band_b_"`
	BandC GradeBand `gorm:"embedded;embeddedPrefix:band_c_"`
	BandD GradeBand `gorm:"embedded;embeddedPrefix:band_d_"`
	BandE GradeBand `gorm:"embedded;embeddedPrefix:band_e_"`
}

// InRange reports whether the score is inside the question's declared bounds.
func (q *Question) InRange(score float64) bool {
	return score >= q.MinScore && score <= q.MaxScore
}

// BandOf returns the letter of the first band containing score, or "" if none does.
func (q *Question) BandOf(score float64) string {
	bands := []struct {
		letter string
		band   GradeBand
	}{
		{"A", q.BandA}, {"B", q.BandB}, {"C", q.BandC}, {"D", q.BandD}, {"E", q.BandE},
	}
	for _, b := range bands {
		if b.band.Contains(score) {
			return b.letter
		}
	}
	return ""
}
