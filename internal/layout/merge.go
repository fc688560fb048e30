package layout

import (
	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/geometry"
)

// Merge and filter thresholds, in pixels
const (
	nearbyDistance   = 40.0
	nearbyScale      = 0.5
	adBlockMinSize   = 3
	adBlockMinWidth  = 150.0
	adBlockMinHeight = 150.0
)

// dominance reports whether a cluster with bounds outer absorbs one with
// bounds inner.
type dominance func(outer, inner geometry.Rect) bool

// absorb keeps every cluster no other cluster dominates and unions into it
// every cluster it dominates. The input is left untouched; clusters ending
// up with the same members are kept once.
func absorb(set []Cluster, dominates dominance) []Cluster {
	out := make([]Cluster, 0, len(set))
	seen := make(map[string]bool, len(set))

	for i, a := range set {
		outer := a.Bounds()

		dominated := false
		for j, b := range set {
			if i != j && dominates(b.Bounds(), outer) {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}

		merged := a
		for j, b := range set {
			if i != j && dominates(outer, b.Bounds()) {
				merged = merged.Union(b)
			}
		}

		key := merged.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, merged)
	}

	return out
}

func contains(outer, inner geometry.Rect) bool {
	return geometry.Overlap(outer, inner) && outer.Greater(inner)
}

func nearbyAndSmaller(base, target geometry.Rect) bool {
	return target.Dimensions.Area() < base.Dimensions.Scale(nearbyScale).Area() &&
		geometry.Distance(base, target) < nearbyDistance
}

// EatContained absorbs every cluster overlapping a strictly larger one.
func EatContained(set []Cluster) []Cluster {
	return absorb(set, contains)
}

// EatFullyContained absorbs every cluster whose bounds lie strictly inside
// a larger cluster's bounds.
func EatFullyContained(set []Cluster) []Cluster {
	return absorb(set, geometry.OverlapFully)
}

// EatNearby absorbs clusters under a quarter of a neighbour's area that lie
// within 40px of it.
func EatNearby(set []Cluster) []Cluster {
	return absorb(set, nearbyAndSmaller)
}

// IsAdBlock reports whether a merged cluster is large enough to be one
// product listing.
func IsAdBlock(c Cluster) bool {
	b := c.Bounds()
	return c.Len() >= adBlockMinSize &&
		b.Dimensions.Width > adBlockMinWidth &&
		b.Dimensions.Height > adBlockMinHeight
}

// FilterAdBlocks keeps the clusters passing IsAdBlock
func FilterAdBlocks(set []Cluster) []Cluster {
	var out []Cluster
	for _, c := range set {
		if IsAdBlock(c) {
			out = append(out, c)
		}
	}
	return out
}

// Merge runs each absorption pass once, contained then nearby then fully
// contained, and filters the result to ad blocks.
func Merge(set []Cluster) []Cluster {
	return FilterAdBlocks(EatFullyContained(EatNearby(EatContained(set))))
}

// FindAdBlocks clusters the fragments of one page and merges the clusters
// into ad blocks.
func FindAdBlocks(frags []*domain.Fragment, opts ClusterOptions) []Cluster {
	return Merge(ClusterFragments(frags, opts))
}
