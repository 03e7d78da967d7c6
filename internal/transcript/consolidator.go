package transcript

import (
	"sort"
	"strings"

	"zeus/internal/config"
	"zeus/internal/services"
)

// overlapNudge separates segments that collide after timing adjustments.
const overlapNudge = 0.01

// Consolidator merges the segments of multiple transcription passes into a
// single ordered, non-overlapping transcript.
type Consolidator struct {
	overlapThreshold float64
	minSegment       float64
	mergeGap         float64
}

// NewConsolidator builds a consolidator from configuration thresholds.
func NewConsolidator(cfg config.Consolidation) *Consolidator {
	return &Consolidator{
		overlapThreshold: cfg.OverlapThreshold,
		minSegment:       cfg.MinSegmentSeconds,
		mergeGap:         cfg.MergeGapSeconds,
	}
}

type candidate struct {
	Segment
	passIndex   int
	temperature float64
}

type bucket struct {
	members []candidate
	start   float64
	end     float64
}

func (b *bucket) add(c candidate) {
	b.members = append(b.members, c)
	if c.Start < b.start {
		b.start = c.Start
	}
	if c.End > b.end {
		b.end = c.End
	}
}

// Consolidate merges all succeeded passes into one transcript. Failed passes
// are ignored; at least one pass must have succeeded.
func (c *Consolidator) Consolidate(results []PassResult) ([]ConsolidatedSegment, error) {
	succeeded := SucceededPasses(results)
	if len(succeeded) == 0 {
		return nil, services.Wrap(services.ErrConsolidation, "consolidating", "merge", "zero succeeded passes", nil)
	}

	candidates := collectCandidates(succeeded)
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrConsolidation, "consolidating", "merge", "succeeded passes produced no usable segments", nil)
	}

	buckets := c.bucketByOverlap(candidates)
	segments := make([]ConsolidatedSegment, 0, len(buckets))
	for _, b := range buckets {
		segments = append(segments, resolveBucket(b))
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Start != segments[j].Start {
			return segments[i].Start < segments[j].Start
		}
		return segments[i].End < segments[j].End
	})

	segments = c.mergeFragments(segments)
	segments = c.normalizeTiming(segments)
	return segments, nil
}

func collectCandidates(passes []PassResult) []candidate {
	var out []candidate
	for _, pass := range passes {
		for _, segment := range pass.Segments {
			segment.Text = strings.TrimSpace(segment.Text)
			if segment.Text == "" || segment.End <= segment.Start {
				continue
			}
			out = append(out, candidate{
				Segment:     segment,
				passIndex:   pass.PassIndex,
				temperature: pass.Temperature,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].passIndex < out[j].passIndex
	})
	return out
}

// bucketByOverlap groups candidates that describe the same utterance. Two
// segments share a bucket when their ranges overlap by more than the
// threshold fraction of the shorter segment's duration.
func (c *Consolidator) bucketByOverlap(candidates []candidate) []*bucket {
	var buckets []*bucket
	for _, cand := range candidates {
		var target *bucket
		for i := len(buckets) - 1; i >= 0; i-- {
			b := buckets[i]
			if b.end <= cand.Start {
				break
			}
			if c.sameUtterance(b, cand) {
				target = b
				break
			}
		}
		if target == nil {
			buckets = append(buckets, &bucket{
				members: []candidate{cand},
				start:   cand.Start,
				end:     cand.End,
			})
			continue
		}
		target.add(cand)
	}
	return buckets
}

func (c *Consolidator) sameUtterance(b *bucket, cand candidate) bool {
	for _, member := range b.members {
		overlap := minFloat(member.End, cand.End) - maxFloat(member.Start, cand.Start)
		if overlap <= 0 {
			continue
		}
		shorter := minFloat(member.Duration(), cand.Duration())
		if shorter <= 0 {
			continue
		}
		if overlap > c.overlapThreshold*shorter {
			return true
		}
	}
	return false
}

// resolveBucket picks the winning text (highest confidence, ties to the lower
// temperature pass), aggregates confidence as the member mean, and takes the
// median of member timings for robustness against outlier passes.
func resolveBucket(b *bucket) ConsolidatedSegment {
	best := b.members[0]
	var confidenceSum float64
	starts := make([]float64, 0, len(b.members))
	ends := make([]float64, 0, len(b.members))
	passSet := make(map[int]struct{}, len(b.members))

	for _, member := range b.members {
		confidenceSum += member.Confidence
		starts = append(starts, member.Start)
		ends = append(ends, member.End)
		passSet[member.passIndex] = struct{}{}
		if betterCandidate(member, best) {
			best = member
		}
	}

	passes := make([]int, 0, len(passSet))
	for idx := range passSet {
		passes = append(passes, idx)
	}
	sort.Ints(passes)

	return ConsolidatedSegment{
		Start:        median(starts),
		End:          median(ends),
		Text:         best.Text,
		Confidence:   confidenceSum / float64(len(b.members)),
		SourcePasses: passes,
	}
}

func betterCandidate(a, b candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.temperature != b.temperature {
		return a.temperature < b.temperature
	}
	return a.passIndex < b.passIndex
}

// mergeFragments joins a sub-minimum fragment into its neighbour when the gap
// between them is below the merge threshold, avoiding sub-second captions.
func (c *Consolidator) mergeFragments(segments []ConsolidatedSegment) []ConsolidatedSegment {
	if len(segments) < 2 {
		return segments
	}
	out := segments[:1]
	for _, next := range segments[1:] {
		prev := &out[len(out)-1]
		gap := next.Start - prev.End
		fragment := prev.Duration() < c.minSegment || next.Duration() < c.minSegment
		if gap < c.mergeGap && fragment {
			merged := mergeSegments(*prev, next)
			*prev = merged
			continue
		}
		out = append(out, next)
	}
	return out
}

func mergeSegments(a, b ConsolidatedSegment) ConsolidatedSegment {
	passes := make(map[int]struct{}, len(a.SourcePasses)+len(b.SourcePasses))
	for _, idx := range a.SourcePasses {
		passes[idx] = struct{}{}
	}
	for _, idx := range b.SourcePasses {
		passes[idx] = struct{}{}
	}
	combined := make([]int, 0, len(passes))
	for idx := range passes {
		combined = append(combined, idx)
	}
	sort.Ints(combined)

	return ConsolidatedSegment{
		Start:        minFloat(a.Start, b.Start),
		End:          maxFloat(a.End, b.End),
		Text:         strings.TrimSpace(a.Text + " " + b.Text),
		Confidence:   (a.Confidence + b.Confidence) / 2,
		SourcePasses: combined,
	}
}

// normalizeTiming enforces the output invariants: clamped non-negative starts,
// a minimum duration per caption, and strictly non-overlapping order.
func (c *Consolidator) normalizeTiming(segments []ConsolidatedSegment) []ConsolidatedSegment {
	out := make([]ConsolidatedSegment, 0, len(segments))
	for _, segment := range segments {
		if segment.Start < 0 {
			segment.Start = 0
		}
		if len(out) > 0 {
			prevEnd := out[len(out)-1].End
			if segment.Start < prevEnd {
				segment.Start = prevEnd + overlapNudge
			}
		}
		if segment.End-segment.Start < c.minSegment {
			segment.End = segment.Start + c.minSegment
		}
		out = append(out, segment)
	}
	return out
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
