package orchestrator

import (
	"fmt"
	"math"
	"strings"

	"github.com/maastricht-university/claimlens/schema"
)

// overlap is the length of the intersection of [a0,a1] and [b0,b1].
func overlap(a0, a1, b0, b1 float64) float64 {
	return math.Max(0, math.Min(a1, b1)-math.Max(a0, b0))
}

// mmss formats seconds as MM:SS; minutes are not wrapped at 60.
func mmss(sec float64) string {
	s := int(math.Max(0, sec))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Render formats segments one per line as "MM:SS - MM:SS text".
func Render(segs []schema.TranscriptSegment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s - %s %s", mmss(s.Start), mmss(s.End), strings.TrimSpace(s.Text))
	}
	return b.String()
}

func chunkDescription(base string, c schema.Chunk, total int) string {
	suffix := fmt.Sprintf("chunk %d/%d (%s-%s)", c.Index+1, total, mmss(c.StartSec), mmss(c.EndSec))
	if strings.TrimSpace(base) == "" {
		return suffix
	}
	return strings.TrimSpace(base) + " - " + suffix
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ptr[T any](v T) *T { return &v }
