package clients

import (
	"context"

	"github.com/maastricht-university/claimlens/confidence"
)

// --- Face analysis (/detect) ---
type FaceResp struct {
	Faces []confidence.FaceDetection `json:"faces"`
}

// Face posts sampled frames to the action-unit/emotion detection service.
type Face struct {
	h   *HTTP
	URL string
}

func NewFace(h *HTTP, url string) *Face { return &Face{h: h, URL: url} }

func (f *Face) DetectFaces(ctx context.Context, frames []string) ([]confidence.FaceDetection, error) {
	var out FaceResp
	if err := f.h.postFiles(ctx, "face", f.URL+"/detect", "frames", frames, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}
