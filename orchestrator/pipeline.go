package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/schema"
)

// Deps is the set of collaborators a pipeline runs against. It is built once
// per process and shared by every run.
type Deps struct {
	Transcriber Transcriber
	Indexer     SpeakerIndexer
	Extractor   StatementExtractor
	Enroller    Enroller
	Media       Media
	Voice       VoiceMatcher
	Identity    identity.Repository
	Audio       Scorer
	Facial      Scorer
	Sinks       []Sink
	Metrics     Recorder
	Log         logrus.FieldLogger
}

type Pipeline struct {
	cfg      *cfg.Root
	deps     Deps
	log      logrus.FieldLogger
	metrics  Recorder
	analyzer *StatementAnalyzer
}

func NewPipeline(c *cfg.Root, d Deps) (*Pipeline, error) {
	switch {
	case d.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case d.Indexer == nil || d.Extractor == nil:
		return nil, errors.New("pipeline: speaker indexer and statement extractor are required")
	case d.Media == nil || d.Audio == nil:
		return nil, errors.New("pipeline: media and audio scorer are required")
	}
	p := &Pipeline{cfg: c, deps: d, log: d.Log, metrics: d.Metrics}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	p.analyzer = &StatementAnalyzer{
		Media:           d.Media,
		Resolver:        &Resolver{Voice: d.Voice, Log: p.log},
		Identity:        d.Identity,
		Audio:           d.Audio,
		Facial:          d.Facial,
		MinVoiceSeconds: c.Analysis.MinVoiceSeconds,
		Log:             p.log,
	}
	return p, nil
}

// Run analyses one recording. It fails only when transcription fails; every
// later failure is recorded inside the returned document.
func (p *Pipeline) Run(ctx context.Context, mediaPath, description string) (*schema.RunDocument, error) {
	runID := uuid.New().String()
	log := p.log.WithFields(logrus.Fields{"run_id": runID, "input": mediaPath})

	hasVideo, err := p.deps.Media.HasVideo(ctx, mediaPath)
	if err != nil {
		log.WithError(err).Warn("video probe failed, treating input as audio-only")
		hasVideo = false
	}
	if hasVideo && p.deps.Facial == nil {
		log.Warn("no facial scorer configured, treating input as audio-only")
		hasVideo = false
	}

	t0 := time.Now()
	tr, err := p.deps.Transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", mediaPath, err)
	}
	p.metrics.Stage("transcribe", time.Since(t0))
	log.WithField("segments", len(tr.Segments)).Info("transcription complete")

	t0 = time.Now()
	chunks := Chunk(tr.Segments, p.cfg.Chunking.ChunkSeconds)
	results := p.processChunks(ctx, mediaPath, description, !hasVideo, duration(tr), chunks)
	p.metrics.Stage("chunks", time.Since(t0))

	spkLists := make([][]schema.SpeakerSegment, len(results))
	stmtLists := make([][]schema.Statement, len(results))
	diags := make([]schema.ChunkDiagnostic, len(results))
	for i, r := range results {
		spkLists[i], stmtLists[i], diags[i] = r.speakers, r.statements, r.diag
	}
	speakers := MergeSpeakerSegments(spkLists...)
	statements := MergeStatements(stmtLists...)
	log.WithFields(logrus.Fields{
		"chunks":           len(chunks),
		"speaker_segments": len(speakers),
		"statements":       len(statements),
	}).Info("chunks merged")

	t0 = time.Now()
	analyses := p.analyzeStatements(ctx, mediaPath, hasVideo, statements, speakers)
	p.metrics.Stage("statements", time.Since(t0))

	doc := &schema.RunDocument{
		RunID:              runID,
		InputFile:          mediaPath,
		Description:        description,
		HasVideoStream:     hasVideo,
		GeneratedAt:        time.Now().UTC(),
		TranscriptText:     tr.Text,
		TranscriptForLLM:   Render(tr.Segments),
		TranscriptSegments: nonNil(tr.Segments),
		Chunking: schema.ChunkingReport{
			ChunkSeconds:        p.cfg.Chunking.ChunkSeconds,
			ChunkCount:          len(chunks),
			PerChunkDiagnostics: diags,
		},
		SpeakerSegments:   speakers,
		Statements:        statements,
		StatementAnalyses: analyses,
	}
	log.WithFields(logrus.Fields{
		"analyses":      len(analyses),
		"failed_chunks": doc.FailedChunks(),
	}).Info("run complete")
	return doc, nil
}

func (p *Pipeline) analyzeStatements(ctx context.Context, mediaPath string, hasVideo bool, statements []schema.Statement, known []schema.SpeakerSegment) []schema.StatementAnalysis {
	out := runPool(ctx, p.log, p.cfg.Analysis.MaxWorkers, statements,
		func(ctx context.Context, _ int, st schema.Statement) schema.StatementAnalysis {
			return p.analyzer.Analyze(ctx, mediaPath, hasVideo, st, known)
		},
		func(i int, v any) schema.StatementAnalysis {
			return failedAnalysis(statements[i], known, hasVideo, v)
		})
	for _, a := range out {
		p.metrics.StatementTask(a.Status)
	}
	return out
}

// duration prefers the transcriber's figure and falls back to the last
// segment end.
func duration(tr schema.Transcript) float64 {
	if tr.Duration > 0 || len(tr.Segments) == 0 {
		return tr.Duration
	}
	return tr.Segments[len(tr.Segments)-1].End
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
