package domain

import (
	"math"
	"strconv"
	"strings"
)

// Percentage returns score/total as a rounded percentage, 0 for an empty quiz.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// Remark returns the results-page message for a score.
func Remark(score, total int) string {
	if total <= 0 {
		return "Keep practicing! You can do better!"
	}
	pct := float64(score) / float64(total) * 100
	switch {
	case pct >= 80:
		return "Excellent! Great job!"
	case pct >= 60:
		return "Good work! Keep learning!"
	case pct >= 40:
		return "Not bad! Room for improvement."
	default:
		return "Keep practicing! You can do better!"
	}
}

// ParseScore reads a stored best score. Only non-negative base-10 integers are valid.
func ParseScore(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
