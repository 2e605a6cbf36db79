package transcription

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/retry"
	"github.com/maastricht-university/claimlens/schema"
)

// Splitter cuts oversized inputs into pieces the provider will accept.
type Splitter interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractClip(ctx context.Context, path string, start, end float64, kind media.Kind) (string, error)
}

// OpenAI transcribes through an OpenAI-compatible /audio/transcriptions
// endpoint with word and segment timestamps.
type OpenAI struct {
	api      *openai.Client
	model    string
	maxBytes int64
	piece    float64
	split    Splitter
	policy   retry.Policy
	log      logrus.FieldLogger
}

func NewOpenAI(l config.LLM, t config.Transcription, split Splitter, p retry.Policy, log logrus.FieldLogger) *OpenAI {
	oc := openai.DefaultConfig(l.APIKey)
	if l.BaseURL != "" {
		oc.BaseURL = l.BaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	piece := t.PieceSeconds
	if piece <= 0 {
		piece = 600
	}
	return &OpenAI{
		api:      openai.NewClientWithConfig(oc),
		model:    l.TranscriptionModel,
		maxBytes: int64(t.MaxUploadMB) << 20,
		piece:    piece,
		split:    split,
		policy:   p,
		log:      log,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, path string) (schema.Transcript, error) {
	st, err := os.Stat(path)
	if err != nil {
		return schema.Transcript{}, retry.Permanent(err)
	}
	if o.maxBytes <= 0 || st.Size() <= o.maxBytes || o.split == nil {
		return o.file(ctx, path)
	}

	dur, err := o.split.Duration(ctx, path)
	if err != nil {
		return schema.Transcript{}, fmt.Errorf("transcribe: probe duration: %w", err)
	}
	pieces := int(math.Ceil(dur / o.piece))
	o.log.WithFields(logrus.Fields{"path": path, "bytes": st.Size(), "pieces": pieces}).
		Info("input exceeds upload limit, transcribing in pieces")

	parts := make([]schema.Transcript, 0, pieces)
	offsets := make([]float64, 0, pieces)
	for i := range pieces {
		start := float64(i) * o.piece
		end := math.Min(start+o.piece, dur)
		t, err := o.transcribePiece(ctx, path, start, end)
		if err != nil {
			return schema.Transcript{}, fmt.Errorf("transcribe piece %d/%d: %w", i+1, pieces, err)
		}
		parts = append(parts, t)
		offsets = append(offsets, start)
	}
	out := Merge(parts, offsets)
	out.Duration = dur
	return out, nil
}

func (o *OpenAI) transcribePiece(ctx context.Context, path string, start, end float64) (schema.Transcript, error) {
	clip, err := o.split.ExtractClip(ctx, path, start, end, media.Audio)
	if err != nil {
		return schema.Transcript{}, err
	}
	defer media.Remove(clip)
	return o.file(ctx, clip)
}

func (o *OpenAI) file(ctx context.Context, path string) (schema.Transcript, error) {
	resp, err := retry.Do(ctx, o.policy, "transcribe", func(ctx context.Context) (openai.AudioResponse, error) {
		return o.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    o.model,
			FilePath: path,
			Format:   openai.AudioResponseFormatVerboseJSON,
			TimestampGranularities: []openai.TranscriptionTimestampGranularity{
				openai.TranscriptionTimestampGranularityWord,
				openai.TranscriptionTimestampGranularitySegment,
			},
		})
	})
	if err != nil {
		return schema.Transcript{}, err
	}
	return fromResponse(resp), nil
}

func fromResponse(r openai.AudioResponse) schema.Transcript {
	t := schema.Transcript{
		Text:     strings.TrimSpace(r.Text),
		Language: r.Language,
		Duration: r.Duration,
		Segments: make([]schema.TranscriptSegment, 0, len(r.Segments)),
		Words:    make([]schema.Word, 0, len(r.Words)),
	}
	for _, s := range r.Segments {
		t.Segments = append(t.Segments, schema.TranscriptSegment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	for _, w := range r.Words {
		t.Words = append(t.Words, schema.Word{Start: w.Start, End: w.End, Word: w.Word})
	}
	return t
}

// Merge concatenates piece transcripts, shifting each by its offset.
func Merge(parts []schema.Transcript, offsets []float64) schema.Transcript {
	var out schema.Transcript
	out.Segments = []schema.TranscriptSegment{}
	out.Words = []schema.Word{}
	var texts []string
	for i, p := range parts {
		off := offsets[i]
		if out.Language == "" {
			out.Language = p.Language
		}
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
		for _, s := range p.Segments {
			out.Segments = append(out.Segments, schema.TranscriptSegment{Start: s.Start + off, End: s.End + off, Text: s.Text})
		}
		for _, w := range p.Words {
			out.Words = append(out.Words, schema.Word{Start: w.Start + off, End: w.End + off, Word: w.Word})
		}
		out.Duration = math.Max(out.Duration, off+p.Duration)
	}
	out.Text = strings.Join(texts, " ")
	return out
}
