package orchestrator

import (
	"sort"
	"strings"

	"github.com/maastricht-university/claimlens/schema"
)

type segmentKey struct {
	speaker    string
	start, end float64
}

// MergeSpeakerSegments flattens per-chunk lists in chunk order, keeps the
// first occurrence of each (speaker_id, start, end) and sorts by start.
func MergeSpeakerSegments(lists ...[]schema.SpeakerSegment) []schema.SpeakerSegment {
	seen := map[segmentKey]bool{}
	out := []schema.SpeakerSegment{}
	for _, l := range lists {
		for _, s := range l {
			k := segmentKey{s.SpeakerID, s.Start, s.End}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

type statementKey struct {
	start, end float64
	text       string
}

// MergeStatements keeps the first occurrence of each (start, end, trimmed
// text) and sorts by start.
func MergeStatements(lists ...[]schema.Statement) []schema.Statement {
	seen := map[statementKey]bool{}
	out := []schema.Statement{}
	for _, l := range lists {
		for _, s := range l {
			k := statementKey{s.Start, s.End, strings.TrimSpace(s.Text)}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
