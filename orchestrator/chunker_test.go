package orchestrator_test

import (
	"math/rand/v2"

	. "github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/schema"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func seg(start, end float64, text string) schema.TranscriptSegment {
	return schema.TranscriptSegment{Start: start, End: end, Text: text}
}

var _ = Describe("Chunk", func() {
	It("splits a long transcript into bounded windows", func() {
		chunks := Chunk([]schema.TranscriptSegment{
			seg(0, 1200, "opening"),
			seg(1200, 2400, "middle"),
			seg(2400, 3000, "closing"),
		}, 1200)

		Expect(chunks).To(HaveLen(3))
		Expect([]float64{chunks[0].StartSec, chunks[0].EndSec}).To(Equal([]float64{0, 1200}))
		Expect([]float64{chunks[1].StartSec, chunks[1].EndSec}).To(Equal([]float64{1200, 2400}))
		Expect([]float64{chunks[2].StartSec, chunks[2].EndSec}).To(Equal([]float64{2400, 3000}))
		for i, c := range chunks {
			Expect(c.Index).To(Equal(i))
		}
	})

	It("yields a single empty chunk for an empty transcript", func() {
		chunks := Chunk(nil, 1200)
		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].StartSec).To(BeZero())
		Expect(chunks[0].EndSec).To(BeZero())
		Expect(chunks[0].Text).To(BeEmpty())
	})

	It("renders MM:SS lines without wrapping minutes", func() {
		chunks := Chunk([]schema.TranscriptSegment{
			seg(5, 12.7, "  Hello there. "),
			seg(3725, 3730, "An hour in."),
		}, 10000)
		Expect(chunks[0].Text).To(Equal("00:05 - 00:12 Hello there.\n62:05 - 62:10 An hour in."))
	})

	It("keeps every segment exactly once, in order, within the bound", func() {
		r := rand.New(rand.NewPCG(3, 4))
		for trial := 0; trial < 50; trial++ {
			var segs []schema.TranscriptSegment
			t := 0.0
			for i := 0; i < 1+r.IntN(200); i++ {
				start := t + r.Float64()*3
				end := start + 0.5 + r.Float64()*30
				segs = append(segs, seg(start, end, "s"))
				t = end
			}
			bound := 60 + r.Float64()*600
			chunks := Chunk(segs, bound)

			var flat []schema.TranscriptSegment
			for _, c := range chunks {
				flat = append(flat, c.Segments...)
				if len(c.Segments) > 1 {
					last := c.Segments[len(c.Segments)-1]
					Expect(last.End - c.Segments[0].Start).To(BeNumerically("<=", bound))
				}
			}
			Expect(flat).To(Equal(segs))
		}
	})
})
