package orchestrator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/schema"
)

// VoiceMatcher is the biometric nearest-neighbour lookup.
type VoiceMatcher interface {
	FindAudioIdentity(ctx context.Context, wavPath string) ([]schema.VoiceMatch, error)
}

// Resolver attributes a statement to a speaker: voice fingerprint first,
// interval overlap with known segments second.
type Resolver struct {
	Voice VoiceMatcher
	Log   logrus.FieldLogger
}

// Resolve never fails; an empty clip path skips the fingerprint tier.
func (r *Resolver) Resolve(ctx context.Context, st schema.Statement, known []schema.SpeakerSegment, clip string) schema.SpeakerAlignment {
	if clip != "" && r.Voice != nil {
		matches, err := r.Voice.FindAudioIdentity(ctx, clip)
		if err != nil && r.Log != nil {
			r.Log.WithError(err).WithField("start", st.Start).Debug("voice match unavailable")
		}
		for _, m := range matches {
			if m.SpeakerID == "" {
				continue
			}
			return schema.SpeakerAlignment{
				SpeakerID:    ptr(m.SpeakerID),
				MatchMethod:  schema.MatchVectorFingerprint,
				Distance:     ptr(m.Distance),
				SegmentStart: ptr(m.Start),
				SegmentEnd:   ptr(m.End),
			}
		}
	}
	return ResolveByOverlap(st, known)
}

// ResolveByOverlap picks the known segment with the largest intersection;
// ties go to the earliest segment and zero overlap yields no speaker.
func ResolveByOverlap(st schema.Statement, known []schema.SpeakerSegment) schema.SpeakerAlignment {
	best, bestOv := -1, 0.0
	for i, s := range known {
		if ov := overlap(st.Start, st.End, s.Start, s.End); ov > bestOv {
			best, bestOv = i, ov
		}
	}
	out := schema.SpeakerAlignment{MatchMethod: schema.MatchOverlapFallback, OverlapSeconds: ptr(0.0)}
	if best < 0 {
		return out
	}
	seg := known[best]
	out.SpeakerID = ptr(seg.SpeakerID)
	out.OverlapSeconds = ptr(round(bestOv, 3))
	out.SegmentStart = ptr(seg.Start)
	out.SegmentEnd = ptr(seg.End)
	return out
}
