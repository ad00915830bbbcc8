package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxStars is the highest rating a contributor can give.
const MaxStars = 5.0

// ErrScoreParse marks a rating label that is not a valid star count.
var ErrScoreParse = errors.New("malformed rating label")

// plainDecimal rejects signs, exponents, hex floats and digit separators
// that strconv.ParseFloat would otherwise accept.
var plainDecimal = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseStars converts a rating label such as "3.50 stars" into its score.
// A bare number and the singular "star" suffix are accepted too.
func ParseStars(label string) (float64, error) {
	s := strings.TrimSpace(label)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "stars"), "star"))
	if s == "" || !plainDecimal.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrScoreParse, label)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrScoreParse, label)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxStars {
		return 0, fmt.Errorf("%w: %q out of range", ErrScoreParse, label)
	}
	return v, nil
}
