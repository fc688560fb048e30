// Package layout groups OCR text fragments of a flyer page into ad blocks:
// fragments are first clustered by alignment and proximity, then clusters
// are merged by containment and nearness and filtered down to blocks that
// plausibly hold one product listing.
package layout

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/rtree"

	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/geometry"
)

// Alignment tolerances of the link predicate, in pixels
const (
	edgeAlignTolerance   = 15.0
	centerAlignTolerance = 40.0
)

// Cluster is a set of fragments ordered by reading order.
type Cluster struct {
	members []*domain.Fragment
	bounds  geometry.Rect
}

// NewCluster builds a cluster from fragments, dropping repeats of the same
// fragment.
func NewCluster(frags ...*domain.Fragment) Cluster {
	seen := make(map[*domain.Fragment]bool, len(frags))
	members := make([]*domain.Fragment, 0, len(frags))
	for _, f := range frags {
		if f == nil || seen[f] {
			continue
		}
		seen[f] = true
		members = append(members, f)
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Index < members[j].Index })

	rects := make([]geometry.Rect, len(members))
	for i, m := range members {
		rects[i] = m.Bounds
	}

	return Cluster{members: members, bounds: geometry.Bounding(rects...)}
}

// Members returns the fragments of the cluster in reading order
func (c Cluster) Members() []*domain.Fragment {
	return append([]*domain.Fragment(nil), c.members...)
}

// Len returns the number of fragments
func (c Cluster) Len() int { return len(c.members) }

// Bounds returns the smallest rectangle enclosing every member
func (c Cluster) Bounds() geometry.Rect { return c.bounds }

// Contains reports whether f is a member
func (c Cluster) Contains(f *domain.Fragment) bool {
	for _, m := range c.members {
		if m == f {
			return true
		}
	}
	return false
}

// Union returns a new cluster holding the members of both
func (c Cluster) Union(o Cluster) Cluster {
	all := make([]*domain.Fragment, 0, len(c.members)+len(o.members))
	all = append(all, c.members...)
	all = append(all, o.members...)
	return NewCluster(all...)
}

// Text joins the member texts with newlines
func (c Cluster) Text() string {
	texts := make([]string, len(c.members))
	for i, m := range c.members {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n")
}

// Key identifies the member set; equal sets have equal keys.
func (c Cluster) Key() string {
	var b strings.Builder
	for i, m := range c.members {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(m.Index))
	}
	return b.String()
}

// ClusterOptions configures fragment clustering
type ClusterOptions struct {
	// MaxDistance is the exclusive upper bound on the gap between linked fragments
	MaxDistance float64
	// MinCount is the smallest component committed as a cluster
	MinCount int
	// MinDimensions optionally rejects components with smaller bounds; zero disables it
	MinDimensions geometry.Dimensions
}

// DefaultClusterOptions returns the options used by the pipeline
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{MaxDistance: 50, MinCount: 2}
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	d := DefaultClusterOptions()
	if o.MaxDistance <= 0 {
		o.MaxDistance = d.MaxDistance
	}
	if o.MinCount <= 0 {
		o.MinCount = d.MinCount
	}
	return o
}

// Linked is the link predicate between two fragment rectangles: they must
// share a left edge, right edge or horizontal centre within tolerance, and
// lie closer than maxDistance.
func Linked(a, b geometry.Rect, maxDistance float64) bool {
	leftAligned := math.Abs(a.Left()-b.Left()) < edgeAlignTolerance
	rightAligned := math.Abs(a.Right()-b.Right()) < edgeAlignTolerance
	centerAligned := math.Abs(a.Centroid().X-b.Centroid().X) < centerAlignTolerance

	return (leftAligned || rightAligned || centerAligned) && geometry.Distance(a, b) < maxDistance
}

// ClusterFragments groups fragments into connected components of the link
// predicate. Fragments are visited in input order; a fragment already in a
// committed cluster is never taken again, and components smaller than
// MinCount (or MinDimensions) are not emitted.
func ClusterFragments(frags []*domain.Fragment, opts ClusterOptions) []Cluster {
	opts = opts.withDefaults()
	frags = uniqueFragments(frags)

	var index rtree.RTreeG[int]
	for i, f := range frags {
		min, max := corners(f.Bounds)
		index.Insert(min, max, i)
	}

	clustered := make([]bool, len(frags))
	var clusters []Cluster

	for seed := range frags {
		if clustered[seed] {
			continue
		}

		component := growComponent(frags, &index, clustered, seed, opts.MaxDistance)
		if len(component) < opts.MinCount {
			continue
		}

		members := make([]*domain.Fragment, len(component))
		for i, idx := range component {
			members[i] = frags[idx]
		}
		cluster := NewCluster(members...)
		if !cluster.Bounds().Dimensions.AtLeast(opts.MinDimensions) {
			continue
		}

		for _, idx := range component {
			clustered[idx] = true
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

// growComponent expands seed to the closure of the link predicate over
// fragments not yet clustered, breadth first.
func growComponent(frags []*domain.Fragment, index *rtree.RTreeG[int], clustered []bool, seed int, maxDistance float64) []int {
	visited := map[int]bool{seed: true}
	component := []int{seed}
	frontier := []int{seed}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		bounds := frags[current].Bounds

		min, max := corners(bounds.Inflate(maxDistance))
		var candidates []int
		index.Search(min, max, func(_, _ [2]float64, candidate int) bool {
			candidates = append(candidates, candidate)
			return true
		})
		sort.Ints(candidates)

		for _, candidate := range candidates {
			if visited[candidate] || clustered[candidate] {
				continue
			}
			if !Linked(bounds, frags[candidate].Bounds, maxDistance) {
				continue
			}
			visited[candidate] = true
			component = append(component, candidate)
			frontier = append(frontier, candidate)
		}
	}

	return component
}

func uniqueFragments(frags []*domain.Fragment) []*domain.Fragment {
	seen := make(map[*domain.Fragment]bool, len(frags))
	out := make([]*domain.Fragment, 0, len(frags))
	for _, f := range frags {
		if f == nil || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func corners(r geometry.Rect) (min, max [2]float64) {
	return [2]float64{r.Left(), r.Top()}, [2]float64{r.Right(), r.Bottom()}
}
