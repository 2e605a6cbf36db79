package clients

import (
	"context"

	"github.com/maastricht-university/claimlens/schema"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type TransWord struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}
type ASRResp struct {
	Text     string      `json:"text"`
	Segments []TransSeg  `json:"segments"`
	Words    []TransWord `json:"words"`
	Language string      `json:"language"`
	Duration float64     `json:"duration"`
}

// ASR is a self-hosted transcription service (POST /transcribe).
type ASR struct {
	h   *HTTP
	URL string
}

func NewASR(h *HTTP, url string) *ASR { return &ASR{h: h, URL: url} }

func (a *ASR) Transcribe(ctx context.Context, path string) (schema.Transcript, error) {
	var out ASRResp
	if err := a.h.postFiles(ctx, "asr", a.URL+"/transcribe", "file", []string{path}, &out); err != nil {
		return schema.Transcript{}, err
	}

	tr := schema.Transcript{
		Text:     out.Text,
		Language: out.Language,
		Duration: out.Duration,
		Segments: make([]schema.TranscriptSegment, 0, len(out.Segments)),
		Words:    make([]schema.Word, 0, len(out.Words)),
	}
	for _, s := range out.Segments {
		tr.Segments = append(tr.Segments, schema.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	for _, w := range out.Words {
		tr.Words = append(tr.Words, schema.Word{Start: w.Start, End: w.End, Word: w.Word})
	}
	return tr, nil
}
