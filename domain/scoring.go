package domain

import "math"

// Grade is the letter derived from a final score on the 0-100 scale.
type Grade string

const (
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeDPlus Grade = "D+"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// ScaleMax is the top of the scale GradeOf operates on.
const ScaleMax = 100.0

var gradeThresholds = []struct {
	min   float64
	grade Grade
}{
	{90, GradeA},
	{80, GradeBPlus},
	{70, GradeB},
	{60, GradeCPlus},
	{50, GradeC},
	{40, GradeDPlus},
	{30, GradeD},
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AverageScore is the arithmetic mean of the raw answer scores, 0 for none.
func AverageScore(answers []Answer) float64 {
	if len(answers) == 0 {
		return 0
	}
	var sum float64
	for _, a := range answers {
		sum += a.Score
	}
	return Round2(sum / float64(len(answers)))
}

// GradeOf maps a 0-100 score to its letter. Thresholds are inclusive.
func GradeOf(score float64) Grade {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return GradeF
}

// Normalize converts a score on a question's [0, maxScore] scale to 0-100.
func Normalize(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * ScaleMax
}

// ScoredAnswer is an answer joined with the question attributes scoring needs.
type ScoredAnswer struct {
	Score    float64
	MaxScore float64
	Weight   float64
}

// Aggregator folds normalized answers into one 0-100 score.
type Aggregator interface {
	Aggregate(answers []ScoredAnswer) float64
}

// MeanAggregator is the unweighted average of normalized scores.
type MeanAggregator struct{}

func (MeanAggregator) Aggregate(answers []ScoredAnswer) float64 {
	if len(answers) == 0 {
		return 0
	}
	var sum float64
	for _, a := range answers {
		sum += Normalize(a.Score, a.MaxScore)
	}
	return Round2(sum / float64(len(answers)))
}

// WeightedAggregator weighs each normalized score by its question weight.
// Non-positive weights count as zero; with no positive weight it falls back
// to the plain mean.
type WeightedAggregator struct{}

func (WeightedAggregator) Aggregate(answers []ScoredAnswer) float64 {
	var sum, weights float64
	for _, a := range answers {
		if a.Weight <= 0 {
			continue
		}
		sum += Normalize(a.Score, a.MaxScore) * a.Weight
		weights += a.Weight
	}
	if weights == 0 {
		return MeanAggregator{}.Aggregate(answers)
	}
	return Round2(sum / weights)
}

// FinalResult runs the aggregator and grades the result.
func FinalResult(agg Aggregator, answers []ScoredAnswer) (float64, Grade) {
	score := agg.Aggregate(answers)
	return score, GradeOf(score)
}
