// Package geometry ranks spatial candidates (seat blocks or individual
// seats) by proximity to an anchor point, typically the stage edge of a
// venue map. Squared Euclidean distance is enough since only relative
// order matters.
package geometry

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// ErrEmptyCandidateSet is returned when ranking or picking from an
// empty candidate list.
var ErrEmptyCandidateSet = errors.New("geometry: empty candidate set")

// Point is a coordinate in the page's pixel space.
type Point struct {
	X float64
	Y float64
}

// Candidate is one selectable block or seat. Positions are recomputed
// from the DOM on every enumeration; instances are throwaway.
type Candidate struct {
	ID      string
	CenterX float64
	CenterY float64
}

// Ranked is a Candidate annotated with its squared distance to the
// anchor it was ranked against.
type Ranked struct {
	Candidate
	Distance float64
}

// Rank orders candidates by ascending squared distance to anchor.
// Ties keep their original enumeration order. The input slice is not
// modified.
func Rank(candidates []Candidate, anchor Point) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidateSet
	}

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		dx := c.CenterX - anchor.X
		dy := c.CenterY - anchor.Y
		ranked[i] = Ranked{Candidate: c, Distance: dx*dx + dy*dy}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	return ranked, nil
}

// PickFromTopPercentile draws a uniformly random element from the top
// percentile of an already ranked list. Spreading picks across the
// nearest cluster avoids every concurrent session colliding on the
// single best candidate. percentile values outside (0, 1] are clamped
// to that range.
func PickFromTopPercentile(ranked []Ranked, percentile float64, rng *rand.Rand) (Ranked, error) {
	if len(ranked) == 0 {
		return Ranked{}, ErrEmptyCandidateSet
	}
	if percentile <= 0 || percentile > 1 {
		percentile = 1
	}

	k := int(math.Ceil(float64(len(ranked)) * percentile))
	if k < 1 {
		k = 1
	}
	return ranked[rng.Intn(k)], nil
}

// Centroid returns the mean center of all candidates with the minimum
// Y among them, which is the stage-edge anchor used by venue maps that
// place the stage at the top of the panel.
func Centroid(candidates []Candidate) (Point, error) {
	if len(candidates) == 0 {
		return Point{}, ErrEmptyCandidateSet
	}

	var sumX float64
	minY := math.Inf(1)
	for _, c := range candidates {
		sumX += c.CenterX
		if c.CenterY < minY {
			minY = c.CenterY
		}
	}
	return Point{X: sumX / float64(len(candidates)), Y: minY}, nil
}
