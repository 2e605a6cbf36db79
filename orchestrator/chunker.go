package orchestrator

import "github.com/maastricht-university/claimlens/schema"

// Chunk partitions time-ordered segments into windows. A chunk is closed when
// the next segment would end more than chunkSeconds after the chunk's first
// segment starts. Empty input yields one empty chunk at [0,0].
func Chunk(segs []schema.TranscriptSegment, chunkSeconds float64) []schema.Chunk {
	if len(segs) == 0 {
		return []schema.Chunk{{Index: 0, StartSec: 0, EndSec: 0, Segments: nil, Text: ""}}
	}

	var out []schema.Chunk
	var cur []schema.TranscriptSegment
	flush := func() {
		out = append(out, schema.Chunk{
			Index:    len(out),
			StartSec: cur[0].Start,
			EndSec:   cur[len(cur)-1].End,
			Segments: cur,
			Text:     Render(cur),
		})
		cur = nil
	}
	for _, s := range segs {
		if len(cur) > 0 && s.End-cur[0].Start > chunkSeconds {
			flush()
		}
		cur = append(cur, s)
	}
	flush()
	return out
}
