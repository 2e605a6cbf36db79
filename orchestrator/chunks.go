package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/schema"
)

const (
	opIndexSpeakers     = "index_speakers"
	opExtractStatements = "extract_statements"
)

// processChunks fans both chunk operations out over all chunks with at most
// maxWorkers chunk-tasks in flight. Results keep chunk order. Speaker indexing
// falls back to the file name when no description is given.
func (p *Pipeline) processChunks(ctx context.Context, mediaPath, description string, audioOnly bool, dur float64, chunks []schema.Chunk) []chunkResult {
	spkBase := description
	if strings.TrimSpace(spkBase) == "" {
		spkBase = filepath.Base(mediaPath)
	}
	return runPool(ctx, p.log, p.cfg.Chunking.MaxWorkers, chunks,
		func(ctx context.Context, i int, c schema.Chunk) chunkResult {
			req := schema.ChunkRequest{
				MediaPath:   mediaPath,
				Transcript:  c.Text,
				Description: chunkDescription(description, c, len(chunks)),
				AudioOnly:   audioOnly,
				StartSec:    c.StartSec,
				EndSec:      c.EndSec,
				Duration:    dur,
			}
			spkReq := req
			spkReq.Description = chunkDescription(spkBase, c, len(chunks))
			return p.processChunk(ctx, c, spkReq, req)
		},
		func(i int, v any) chunkResult {
			msg := fmt.Sprintf("chunk task panic: %v", v)
			c := chunks[i]
			return chunkResult{diag: schema.ChunkDiagnostic{
				Index:          c.Index,
				StartSec:       c.StartSec,
				EndSec:         c.EndSec,
				Status:         schema.StatusFailed,
				SpeakerError:   msg,
				StatementError: msg,
			}}
		})
}

// processChunk runs both operations concurrently and waits for both.
func (p *Pipeline) processChunk(ctx context.Context, c schema.Chunk, spkReq, req schema.ChunkRequest) chunkResult {
	log := p.log.WithFields(logrus.Fields{"chunk": c.Index, "start_sec": c.StartSec, "end_sec": c.EndSec})

	var (
		wg              sync.WaitGroup
		speakers        []schema.SpeakerSegment
		statements      []schema.Statement
		spkErr, stmtErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		spkErr = guard(func() (err error) {
			speakers, err = p.deps.Indexer.IndexSpeakers(ctx, spkReq)
			return err
		})
	}()
	go func() {
		defer wg.Done()
		stmtErr = guard(func() (err error) {
			statements, err = p.deps.Extractor.ExtractStatements(ctx, req)
			return err
		})
	}()
	wg.Wait()

	res := chunkResult{diag: schema.ChunkDiagnostic{Index: c.Index, StartSec: c.StartSec, EndSec: c.EndSec}}
	if spkErr != nil {
		log.WithError(spkErr).Warn("speaker indexing failed")
		res.diag.SpeakerError = spkErr.Error()
		p.metrics.ChunkTask(opIndexSpeakers, schema.StatusFailed)
	} else {
		res.speakers = speakers
		p.metrics.ChunkTask(opIndexSpeakers, schema.StatusOK)
		if p.deps.Enroller != nil && len(speakers) > 0 {
			n := p.deps.Enroller.Enroll(ctx, req.MediaPath, speakers)
			log.WithField("fingerprints", n).Debug("voice fingerprints enrolled")
		}
	}
	if stmtErr != nil {
		log.WithError(stmtErr).Warn("statement extraction failed")
		res.diag.StatementError = stmtErr.Error()
		p.metrics.ChunkTask(opExtractStatements, schema.StatusFailed)
	} else {
		res.statements = statements
		p.metrics.ChunkTask(opExtractStatements, schema.StatusOK)
	}

	res.diag.SpeakerSegmentCount = len(res.speakers)
	res.diag.StatementCount = len(res.statements)
	switch {
	case spkErr != nil && stmtErr != nil:
		res.diag.Status = schema.StatusFailed
	case spkErr != nil || stmtErr != nil:
		res.diag.Status = schema.StatusDegraded
	default:
		res.diag.Status = schema.StatusOK
	}
	log.WithFields(logrus.Fields{
		"speaker_segments": res.diag.SpeakerSegmentCount,
		"statements":       res.diag.StatementCount,
		"status":           res.diag.Status,
	}).Info("chunk processed")
	return res
}

// guard converts a panic inside fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
