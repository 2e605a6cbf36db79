package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/schema"
)

// Fingerprint is one voice embedding attributed to a speaker span.
type Fingerprint struct {
	SpeakerID string
	Start     float64
	End       float64
	Embedding []float32
}

// Index stores fingerprints and answers cosine nearest-neighbour queries.
// Matches are ordered by ascending distance.
type Index interface {
	Add(ctx context.Context, fp Fingerprint) error
	Nearest(ctx context.Context, embedding []float32, k int) ([]schema.VoiceMatch, error)
}

// Embedder turns a mono WAV clip into a voice embedding.
type Embedder interface {
	Embed(ctx context.Context, wavPath string) ([]float32, error)
}

type ClipExtractor interface {
	ExtractClip(ctx context.Context, path string, start, end float64, kind media.Kind) (string, error)
}

// Matcher answers find_audio_identity for a statement clip.
type Matcher struct {
	Embedder Embedder
	Index    Index
	TopK     int
}

func (m *Matcher) FindAudioIdentity(ctx context.Context, wavPath string) ([]schema.VoiceMatch, error) {
	emb, err := m.Embedder.Embed(ctx, wavPath)
	if err != nil {
		return nil, fmt.Errorf("embed clip: %w", err)
	}
	k := m.TopK
	if k <= 0 {
		k = 3
	}
	return m.Index.Nearest(ctx, emb, k)
}

// MinEnrollSeconds is the shortest speaker span worth fingerprinting.
const MinEnrollSeconds = 0.1

// Enroller fingerprints the speaker segments found for a chunk.
type Enroller struct {
	Clips    ClipExtractor
	Embedder Embedder
	Index    Index
	Log      logrus.FieldLogger
}

// Enroll adds one fingerprint per usable segment and returns how many were
// stored. Individual failures are logged and skipped.
func (e *Enroller) Enroll(ctx context.Context, mediaPath string, segs []schema.SpeakerSegment) int {
	n := 0
	for _, s := range segs {
		if s.SpeakerID == "" || s.End-s.Start < MinEnrollSeconds {
			continue
		}
		if err := e.enrollOne(ctx, mediaPath, s); err != nil {
			if e.Log != nil {
				e.Log.WithFields(logrus.Fields{
					"speaker_id": s.SpeakerID,
					"start":      s.Start,
					"end":        s.End,
				}).WithError(err).Warn("fingerprint enrollment skipped")
			}
			continue
		}
		n++
	}
	return n
}

var errEmptyEmbedding = errors.New("empty embedding")

func (e *Enroller) enrollOne(ctx context.Context, mediaPath string, s schema.SpeakerSegment) error {
	clip, err := e.Clips.ExtractClip(ctx, mediaPath, s.Start, s.End, media.Audio)
	if err != nil {
		return err
	}
	defer media.Remove(clip)

	emb, err := e.Embedder.Embed(ctx, clip)
	if err != nil {
		return err
	}
	if len(emb) == 0 {
		return errEmptyEmbedding
	}
	return e.Index.Add(ctx, Fingerprint{SpeakerID: s.SpeakerID, Start: s.Start, End: s.End, Embedding: emb})
}
