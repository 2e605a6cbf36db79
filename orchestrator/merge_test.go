package orchestrator_test

import (
	. "github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/schema"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Merge", func() {
	chunkA := []schema.SpeakerSegment{{SpeakerID: "spkB", Start: 30, End: 40}, {SpeakerID: "spkA", Start: 0, End: 10}}
	chunkB := []schema.SpeakerSegment{{SpeakerID: "spkA", Start: 0, End: 10}, {SpeakerID: "spkA", Start: 10, End: 20}}

	It("deduplicates speaker segments on the exact key and sorts by start", func() {
		merged := MergeSpeakerSegments(chunkA, chunkB)
		Expect(merged).To(Equal([]schema.SpeakerSegment{
			{SpeakerID: "spkA", Start: 0, End: 10},
			{SpeakerID: "spkA", Start: 10, End: 20},
			{SpeakerID: "spkB", Start: 30, End: 40},
		}))
	})

	It("keeps near-duplicates with different timestamps", func() {
		merged := MergeSpeakerSegments(
			[]schema.SpeakerSegment{{SpeakerID: "spkA", Start: 0, End: 10}},
			[]schema.SpeakerSegment{{SpeakerID: "spkA", Start: 0, End: 10.5}},
		)
		Expect(merged).To(HaveLen(2))
	})

	It("deduplicates statements on start, end and trimmed text", func() {
		first := []schema.Statement{{Start: 50, End: 55, Text: "GDP grew 3%."}, {Start: 10, End: 12, Text: "Taxes fell."}}
		second := []schema.Statement{{Start: 50, End: 55, Text: "  GDP grew 3%.  "}, {Start: 50, End: 55, Text: "GDP grew 4%."}}
		merged := MergeStatements(first, second)
		Expect(merged).To(HaveLen(3))
		Expect(merged[0].Text).To(Equal("Taxes fell."))
		Expect(merged[1].Text).To(Equal("GDP grew 3%."))
		Expect(merged[2].Text).To(Equal("GDP grew 4%."))
	})

	It("is idempotent on an already merged list", func() {
		once := MergeSpeakerSegments(chunkA, chunkB)
		Expect(MergeSpeakerSegments(once, once)).To(Equal(once))

		stmts := MergeStatements([]schema.Statement{{Start: 3, End: 4, Text: "b"}, {Start: 1, End: 2, Text: "a"}})
		Expect(MergeStatements(stmts, stmts)).To(Equal(stmts))
	})

	It("returns empty, non-nil lists for no input", func() {
		Expect(MergeSpeakerSegments()).To(BeEmpty())
		Expect(MergeSpeakerSegments()).NotTo(BeNil())
		Expect(MergeStatements(nil, nil)).NotTo(BeNil())
	})
})
