package clients

import (
	"context"
	"errors"
	"net/http"
)

// ErrClipTooShort is returned when the voice service rejects a clip as too
// short to fingerprint.
var ErrClipTooShort = errors.New("voice: clip too short to embed")

// --- Voice embedding (/embed) ---
type EmbedResp struct {
	Embedding []float32 `json:"embedding"`
}

// Voice returns speaker embeddings for mono WAV clips.
type Voice struct {
	h   *HTTP
	URL string
}

func NewVoice(h *HTTP, url string) *Voice { return &Voice{h: h, URL: url} }

func (v *Voice) Embed(ctx context.Context, wavPath string) ([]float32, error) {
	var out EmbedResp
	err := v.h.postFiles(ctx, "voice", v.URL+"/embed", "file", []string{wavPath}, &out)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrClipTooShort
	}
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, ErrClipTooShort
	}
	return out.Embedding, nil
}
