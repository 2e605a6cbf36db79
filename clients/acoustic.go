package clients

import (
	"context"

	"github.com/maastricht-university/claimlens/confidence"
)

// --- Acoustic features (/features) ---
type AcousticResp struct {
	Pitch   confidence.Pitch        `json:"pitch"`
	Quality confidence.VoiceQuality `json:"voice_quality"`
	Energy  confidence.Energy       `json:"energy"`
}

// Acoustic delegates waveform feature extraction, MFCCs included, to a
// remote service.
type Acoustic struct {
	h   *HTTP
	URL string
}

func NewAcoustic(h *HTTP, url string) *Acoustic { return &Acoustic{h: h, URL: url} }

func (a *Acoustic) Extract(ctx context.Context, wavPath string) (confidence.Acoustic, error) {
	var out AcousticResp
	if err := a.h.postFiles(ctx, "acoustic", a.URL+"/features", "file", []string{wavPath}, &out); err != nil {
		return confidence.Acoustic{}, err
	}
	return confidence.Acoustic{Pitch: out.Pitch, Quality: out.Quality, Energy: out.Energy}, nil
}
