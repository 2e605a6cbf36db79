package fingerprint

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/maastricht-university/claimlens/schema"
)

// Memory is a brute-force cosine index kept in process memory.
type Memory struct {
	mu  sync.RWMutex
	fps []Fingerprint
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Add(_ context.Context, fp Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = append(m.fps, fp)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fps)
}

func (m *Memory) Nearest(_ context.Context, emb []float32, k int) ([]schema.VoiceMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schema.VoiceMatch, 0, len(m.fps))
	for _, fp := range m.fps {
		if len(fp.Embedding) != len(emb) {
			continue
		}
		out = append(out, schema.VoiceMatch{
			SpeakerID: fp.SpeakerID,
			Distance:  CosineDistance(emb, fp.Embedding),
			Start:     fp.Start,
			End:       fp.End,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// CosineDistance is 1 - cosine similarity; zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
