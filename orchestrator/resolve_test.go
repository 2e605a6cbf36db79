package orchestrator_test

import (
	"context"
	"errors"

	. "github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/schema"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeVoice struct {
	matches []schema.VoiceMatch
	err     error
	calls   int
}

func (f *fakeVoice) FindAudioIdentity(context.Context, string) ([]schema.VoiceMatch, error) {
	f.calls++
	return f.matches, f.err
}

var _ = Describe("Resolver", func() {
	known := []schema.SpeakerSegment{
		{SpeakerID: "spkA", Start: 90, End: 102},
		{SpeakerID: "spkB", Start: 102, End: 110},
	}
	st := schema.Statement{Start: 100, End: 105, Text: "claim"}

	It("falls back to the largest overlap", func() {
		r := &Resolver{}
		a := r.Resolve(context.Background(), st, known, "")
		Expect(a.MatchMethod).To(Equal(schema.MatchOverlapFallback))
		Expect(*a.SpeakerID).To(Equal("spkB"))
		Expect(*a.OverlapSeconds).To(Equal(3.0))
		Expect(*a.SegmentStart).To(Equal(102.0))
	})

	It("prefers a vector match over a different overlap winner", func() {
		voice := &fakeVoice{matches: []schema.VoiceMatch{
			{SpeakerID: "", Distance: 0.05},
			{SpeakerID: "spkA", Distance: 0.12, Start: 90, End: 102},
		}}
		r := &Resolver{Voice: voice}
		a := r.Resolve(context.Background(), st, known, "/tmp/clip.wav")
		Expect(a.MatchMethod).To(Equal(schema.MatchVectorFingerprint))
		Expect(*a.SpeakerID).To(Equal("spkA"))
		Expect(*a.Distance).To(Equal(0.12))
	})

	It("skips the vector tier without a clip", func() {
		voice := &fakeVoice{matches: []schema.VoiceMatch{{SpeakerID: "spkA"}}}
		r := &Resolver{Voice: voice}
		a := r.Resolve(context.Background(), st, known, "")
		Expect(voice.calls).To(BeZero())
		Expect(*a.SpeakerID).To(Equal("spkB"))
	})

	It("falls back when the vector lookup errors or has no identity", func() {
		for _, voice := range []*fakeVoice{
			{err: errors.New("index offline")},
			{matches: []schema.VoiceMatch{{SpeakerID: ""}}},
		} {
			a := (&Resolver{Voice: voice}).Resolve(context.Background(), st, known, "/tmp/clip.wav")
			Expect(a.MatchMethod).To(Equal(schema.MatchOverlapFallback))
			Expect(*a.SpeakerID).To(Equal("spkB"))
		}
	})

	It("breaks overlap ties by first-encountered segment", func() {
		tied := []schema.SpeakerSegment{
			{SpeakerID: "first", Start: 0, End: 5},
			{SpeakerID: "second", Start: 5, End: 10},
		}
		a := ResolveByOverlap(schema.Statement{Start: 3, End: 7}, tied)
		Expect(*a.SpeakerID).To(Equal("first"))
	})

	It("yields a null identity when nothing overlaps", func() {
		a := ResolveByOverlap(schema.Statement{Start: 200, End: 210}, known)
		Expect(a.SpeakerID).To(BeNil())
		Expect(a.MatchMethod).To(Equal(schema.MatchOverlapFallback))
	})
})
