// Package postprocess - Cross-tile merge of sliced detection results.
//
// Overlapping tiles and the optional full-image pass detect the same physical
// object more than once. Merge collapses those duplicates with class-aware
// greedy Non-Maximum Suppression, leaving at most one box per object per
// class.
package postprocess

import (
	"sort"

	"github.com/modelship/go-detect/annotations"
	"github.com/modelship/go-detect/images"
)

// Config defines parameters for the cross-tile merge.
type Config struct {
	// IoUThreshold is the overlap above which a lower-confidence box is
	// suppressed by a higher-confidence one.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAware restricts suppression to boxes of the same class. The
	// pipeline always merges class-aware; class-agnostic mode exists for
	// single-class models whose duplicate detections disagree on the class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// Merge collapses duplicate detections with greedy Non-Maximum Suppression.
//
// Candidates are ranked by confidence descending, ties broken by larger area
// first and then by input order, so the result is identical no matter which
// order concurrent tiles completed in. The highest-ranked box of each
// overlapping group survives; any remaining same-class box whose IoU with it
// exceeds the threshold is discarded.
//
// The output is ordered by class ID ascending, then confidence descending.
// Merging an already-merged set again returns the same set.
//
// Arguments:
//   - candidates: Mapped detections from all tiles, in aggregation order.
//   - config: Merge configuration.
//
// Returns:
//   - The surviving annotations. Nil when no candidates are provided.
func Merge(candidates []annotations.Annotation, config Config) []annotations.Annotation {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	ranked := make([]annotations.Annotation, n)
	copy(ranked, candidates)

	// Stable sort keeps aggregation order as the final tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Area > ranked[j].Area
	})

	used := make([]bool, n)
	kept := make([]annotations.Annotation, 0, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := ranked[i]
		kept = append(kept, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.ClassID != ranked[j].ClassID {
				continue
			}
			if images.CalculateIoU(anchor.Box, ranked[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	annotations.SortCanonical(kept)
	return kept
}
