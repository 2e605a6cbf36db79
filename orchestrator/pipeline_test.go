package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/logger"
	"github.com/maastricht-university/claimlens/media"
	. "github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/schema"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeTranscriber struct {
	tr  schema.Transcript
	err error
}

func (f fakeTranscriber) Transcribe(context.Context, string) (schema.Transcript, error) {
	return f.tr, f.err
}

// gauge tracks the highest number of concurrent callers.
type gauge struct {
	inflight, peak int32
}

func (g *gauge) enter() {
	n := atomic.AddInt32(&g.inflight, 1)
	for {
		p := atomic.LoadInt32(&g.peak)
		if n <= p || atomic.CompareAndSwapInt32(&g.peak, p, n) {
			return
		}
	}
}

func (g *gauge) leave() { atomic.AddInt32(&g.inflight, -1) }

func (g *gauge) max() int32 { return atomic.LoadInt32(&g.peak) }

type fakeIndexer struct {
	gauge
	delay time.Duration
	mu    sync.Mutex
	reqs  []schema.ChunkRequest
}

func (f *fakeIndexer) IndexSpeakers(_ context.Context, req schema.ChunkRequest) ([]schema.SpeakerSegment, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	time.Sleep(f.delay)
	return []schema.SpeakerSegment{{SpeakerID: "host", Start: req.StartSec, End: req.EndSec}}, nil
}

type fakeExtractor struct {
	failChunk string
	panicky   string
	perChunk  int
}

func (f *fakeExtractor) ExtractStatements(_ context.Context, req schema.ChunkRequest) ([]schema.Statement, error) {
	if f.failChunk != "" && strings.Contains(req.Description, f.failChunk) {
		return nil, errors.New("llm returned malformed json")
	}
	if f.panicky != "" && strings.Contains(req.Description, f.panicky) {
		panic("extractor bug")
	}
	out := []schema.Statement{{Start: req.StartSec + 1, End: req.StartSec + 5, Text: "claim at " + req.Description}}
	for j := 1; j < f.perChunk; j++ {
		at := req.StartSec + float64(j*10)
		out = append(out, schema.Statement{Start: at, End: at + 4, Text: fmt.Sprintf("claim %d at %s", j, req.Description)})
	}
	return out, nil
}

type fakeMedia struct {
	dir      string
	hasVideo bool
	mu       sync.Mutex
	clips    []string
	failKind media.Kind
}

func (f *fakeMedia) HasVideo(context.Context, string) (bool, error) { return f.hasVideo, nil }

func (f *fakeMedia) ExtractClip(_ context.Context, _ string, start, end float64, kind media.Kind) (string, error) {
	if kind == f.failKind {
		return "", fmt.Errorf("ffmpeg exited 1 for %s", kind)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := filepath.Join(f.dir, fmt.Sprintf("%s_%d.tmp", kind, len(f.clips)))
	if err := os.WriteFile(p, []byte("clip"), 0o644); err != nil {
		return "", err
	}
	f.clips = append(f.clips, p)
	return p, nil
}

func (f *fakeMedia) leftovers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.clips {
		if _, err := os.Stat(c); err == nil {
			out = append(out, c)
		}
	}
	return out
}

type fakeScorer struct {
	score float64
	note  string
	err   error
	panic bool
}

func (f fakeScorer) Score(context.Context, string) (*schema.ConfidenceResult, error) {
	if f.panic {
		panic("scorer bug")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &schema.ConfidenceResult{Score: f.score, Note: f.note}, nil
}

// slowScorer holds each call for delay and records peak concurrency.
type slowScorer struct {
	gauge
	delay time.Duration
}

func (f *slowScorer) Score(context.Context, string) (*schema.ConfidenceResult, error) {
	f.enter()
	defer f.leave()
	time.Sleep(f.delay)
	return &schema.ConfidenceResult{Score: 0.5}, nil
}

func fiveSegments() []schema.TranscriptSegment {
	var segs []schema.TranscriptSegment
	for i := 0; i < 5; i++ {
		segs = append(segs, seg(float64(i)*1200, float64(i+1)*1200, fmt.Sprintf("part %d", i+1)))
	}
	return segs
}

var _ = Describe("Pipeline", func() {
	var (
		cfg   *config.Root
		mf    *fakeMedia
		deps  Deps
		idx   *fakeIndexer
		extr  *fakeExtractor
		ctx   context.Context
		input = "talk.mp4"
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.Defaults()
		cfg.Paths.Outputs = GinkgoT().TempDir()
		mf = &fakeMedia{dir: GinkgoT().TempDir()}
		idx = &fakeIndexer{delay: 20 * time.Millisecond}
		extr = &fakeExtractor{}
		deps = Deps{
			Transcriber: fakeTranscriber{tr: schema.Transcript{Text: "full text", Segments: fiveSegments()}},
			Indexer:     idx,
			Extractor:   extr,
			Media:       mf,
			Identity:    identity.NewMemory(identity.Person{ID: "host", Name: "The Host"}),
			Audio:       fakeScorer{score: 0.7},
			Facial:      fakeScorer{score: 0.6},
			Log:         logger.Discard(),
		}
	})

	It("isolates a chunk whose statement extraction always fails", func() {
		extr.failChunk = "chunk 3/5"
		p, err := NewPipeline(cfg, deps)
		Expect(err).NotTo(HaveOccurred())

		doc, err := p.Run(ctx, input, "Debate")
		Expect(err).NotTo(HaveOccurred())

		Expect(doc.Chunking.ChunkCount).To(Equal(5))
		Expect(doc.Statements).To(HaveLen(4))
		for _, s := range doc.Statements {
			Expect(s.Text).NotTo(ContainSubstring("chunk 3/5"))
		}
		d := doc.Chunking.PerChunkDiagnostics[2]
		Expect(d.Status).To(Equal(schema.StatusDegraded))
		Expect(d.StatementCount).To(BeZero())
		Expect(d.StatementError).To(ContainSubstring("malformed json"))
		Expect(d.SpeakerSegmentCount).To(Equal(1))
		Expect(doc.FailedChunks()).To(Equal(1))
		Expect(doc.StatementAnalyses).To(HaveLen(4))
	})

	It("recovers a panicking chunk operation", func() {
		extr.panicky = "chunk 1/5"
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Statements).To(HaveLen(4))
		Expect(doc.Chunking.PerChunkDiagnostics[0].StatementError).To(ContainSubstring("panic"))
	})

	It("never runs more chunk tasks than the worker bound", func() {
		cfg.Chunking.MaxWorkers = 2
		p, _ := NewPipeline(cfg, deps)
		_, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.max()).To(BeNumerically("<=", 2))
		Expect(idx.max()).To(BeNumerically(">=", 1))
	})

	It("bounds concurrent statement analyses by the analysis worker limit", func() {
		extr.perChunk = 4
		audio := &slowScorer{delay: 10 * time.Millisecond}
		deps.Audio = audio
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.StatementAnalyses).To(HaveLen(20))
		Expect(cfg.Analysis.MaxWorkers).To(Equal(8))
		Expect(audio.max()).To(BeNumerically("<=", 8))
		Expect(audio.max()).To(BeNumerically(">=", 1))
	})

	It("caps statement concurrency at the smaller of workers and statements", func() {
		audio := &slowScorer{delay: 10 * time.Millisecond}
		deps.Audio = audio
		cfg.Analysis.MaxWorkers = 3
		p, _ := NewPipeline(cfg, deps)
		_, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(audio.max()).To(BeNumerically("<=", 3))

		audio = &slowScorer{delay: 10 * time.Millisecond}
		deps.Audio = audio
		cfg.Analysis.MaxWorkers = 8
		p, _ = NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.StatementAnalyses).To(HaveLen(5))
		Expect(audio.max()).To(BeNumerically("<=", 5))
	})

	It("names the file for speaker indexing when no description is given", func() {
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, "/media/talks/talk.mp4", "")
		Expect(err).NotTo(HaveOccurred())

		Expect(idx.reqs).To(HaveLen(5))
		for _, r := range idx.reqs {
			Expect(r.Description).To(HavePrefix("talk.mp4 - chunk "))
			Expect(r.Duration).To(Equal(6000.0))
		}
		Expect(doc.Statements[0].Text).To(Equal("claim at chunk 1/5 (00:00-20:00)"))
	})

	It("assembles a sorted, attributed document", func() {
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "Debate")
		Expect(err).NotTo(HaveOccurred())

		Expect(doc.SpeakerSegments).To(HaveLen(5))
		for i := 1; i < len(doc.Statements); i++ {
			Expect(doc.Statements[i].Start).To(BeNumerically(">=", doc.Statements[i-1].Start))
		}
		a := doc.StatementAnalyses[0]
		Expect(a.Status).To(Equal(schema.StatusOK))
		Expect(*a.SpeakerAlignment.SpeakerID).To(Equal("host"))
		Expect(a.SpeakerInfo["name"]).To(Equal("The Host"))
		Expect(a.AudioConfidence.Score).To(Equal(0.7))
		Expect(a.FacialConfidence).To(BeNil())
		Expect(a.FacialNote).To(ContainSubstring("audio-only"))
		Expect(doc.TranscriptForLLM).To(HavePrefix("00:00 - 20:00 part 1"))
		Expect(mf.leftovers()).To(BeEmpty())
	})

	It("scores facial confidence when the input has video", func() {
		mf.hasVideo = true
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.HasVideoStream).To(BeTrue())
		Expect(doc.StatementAnalyses[0].FacialConfidence.Score).To(Equal(0.6))
		Expect(mf.leftovers()).To(BeEmpty())
	})

	It("removes clips when analysis fails or panics", func() {
		mf.hasVideo = true
		deps.Audio = fakeScorer{panic: true}
		deps.Facial = fakeScorer{err: errors.New("face service down")}
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.StatementAnalyses).To(HaveLen(5))
		for _, a := range doc.StatementAnalyses {
			Expect(a.Status).To(Equal(schema.StatusFailed))
			Expect(a.AudioConfidence).NotTo(BeNil())
			Expect(a.AudioConfidence.Error).NotTo(BeEmpty())
		}
		Expect(mf.clips).NotTo(BeEmpty())
		Expect(mf.leftovers()).To(BeEmpty())
	})

	It("keeps audio confidence when the facial scorer panics", func() {
		mf.hasVideo = true
		deps.Facial = fakeScorer{panic: true}
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		for _, a := range doc.StatementAnalyses {
			Expect(a.Status).To(Equal(schema.StatusDegraded))
			Expect(a.AudioConfidence.Score).To(Equal(0.7))
			Expect(a.FacialConfidence.Error).To(ContainSubstring("panic"))
			Expect(a.Error).To(HavePrefix("facial: "))
		}
		Expect(mf.leftovers()).To(BeEmpty())
	})

	It("marks a statement degraded when audio was scored from partial features", func() {
		deps.Audio = fakeScorer{score: 0.4, note: "clip transcription: asr down"}
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		for _, a := range doc.StatementAnalyses {
			Expect(a.Status).To(Equal(schema.StatusDegraded))
			Expect(a.AudioConfidence.Score).To(Equal(0.4))
			Expect(a.AudioConfidence.Error).To(BeEmpty())
			Expect(a.Error).To(Equal("audio: clip transcription: asr down"))
		}
	})

	It("records an error result when clip extraction fails", func() {
		mf.failKind = media.Audio
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())
		a := doc.StatementAnalyses[0]
		Expect(a.Status).To(Equal(schema.StatusDegraded))
		Expect(a.AudioConfidence.Score).To(BeZero())
		Expect(a.AudioConfidence.Error).To(ContainSubstring("ffmpeg"))
		Expect(a.SpeakerAlignment.MatchMethod).To(Equal(schema.MatchOverlapFallback))
	})

	It("fails the run only when transcription fails", func() {
		deps.Transcriber = fakeTranscriber{err: errors.New("rate limited")}
		p, _ := NewPipeline(cfg, deps)
		_, err := p.Run(ctx, input, "")
		Expect(err).To(MatchError(ContainSubstring("rate limited")))
	})

	It("persists the document as JSON", func() {
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "")
		Expect(err).NotTo(HaveOccurred())

		path, err := p.Persist(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("result.json"))

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		for _, key := range []string{`"transcript_segments"`, `"chunking"`, `"per_chunk_diagnostics"`, `"speaker_segments"`, `"statements"`, `"statement_analyses"`} {
			Expect(string(raw)).To(ContainSubstring(key))
		}
		back, err := ReadDocument(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.RunID).To(Equal(doc.RunID))
		Expect(back.StatementAnalyses).To(HaveLen(len(doc.StatementAnalyses)))
	})

	It("persists to an explicit output path", func() {
		p, _ := NewPipeline(cfg, deps)
		doc, err := p.Run(ctx, input, "Debate")
		Expect(err).NotTo(HaveOccurred())

		out := filepath.Join(GinkgoT().TempDir(), "results", "abc123.json")
		Expect(p.PersistTo(ctx, doc, out)).To(Succeed())
		back, err := ReadDocument(out)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.Description).To(Equal("Debate"))
		entries, err := os.ReadDir(cfg.Paths.Outputs)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})
})
