package orchestrator

import (
	"context"
	"time"

	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/schema"
)

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (schema.Transcript, error)
}

// SpeakerIndexer identifies who speaks when inside one chunk.
type SpeakerIndexer interface {
	IndexSpeakers(ctx context.Context, req schema.ChunkRequest) ([]schema.SpeakerSegment, error)
}

// StatementExtractor derives checkable statements from one chunk.
type StatementExtractor interface {
	ExtractStatements(ctx context.Context, req schema.ChunkRequest) ([]schema.Statement, error)
}

// Enroller stores voice fingerprints for freshly indexed speaker segments.
type Enroller interface {
	Enroll(ctx context.Context, mediaPath string, segs []schema.SpeakerSegment) int
}

type Media interface {
	HasVideo(ctx context.Context, path string) (bool, error)
	ExtractClip(ctx context.Context, path string, start, end float64, kind media.Kind) (string, error)
}

// Scorer computes one confidence result from a media clip.
type Scorer interface {
	Score(ctx context.Context, clipPath string) (*schema.ConfidenceResult, error)
}

// Sink receives the finished run document after it is written to disk.
type Sink interface {
	Save(ctx context.Context, doc *schema.RunDocument, path string) error
}

// Recorder receives task outcomes and stage timings.
type Recorder interface {
	ChunkTask(operation string, status schema.Status)
	StatementTask(status schema.Status)
	Stage(name string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ChunkTask(string, schema.Status) {}
func (nopRecorder) StatementTask(schema.Status) {}
func (nopRecorder) Stage(string, time.Duration) {}

// chunkResult is the joined outcome of both operations for one chunk.
// A failed operation contributes an empty list.
type chunkResult struct {
	speakers   []schema.SpeakerSegment
	statements []schema.Statement
	diag       schema.ChunkDiagnostic
}
