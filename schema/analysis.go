package schema

import "time"

// Status is the outcome variant of a chunk-task or statement-task.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

const (
	MatchVectorFingerprint = "vector_fingerprint"
	MatchOverlapFallback   = "overlap_fallback"
)

// VoiceMatch is one nearest-neighbour hit from the fingerprint index.
type VoiceMatch struct {
	SpeakerID string  `json:"speaker_id"`
	Distance  float64 `json:"distance"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// SpeakerAlignment records which speaker a statement was attributed to and why.
// SpeakerID is nil when no identity could be determined.
type SpeakerAlignment struct {
	SpeakerID      *string  `json:"speaker_id"`
	MatchMethod    string   `json:"match_method"`
	Distance       *float64 `json:"distance,omitempty"`
	OverlapSeconds *float64 `json:"overlap_seconds,omitempty"`
	SegmentStart   *float64 `json:"segment_start,omitempty"`
	SegmentEnd     *float64 `json:"segment_end,omitempty"`
}

// ConfidenceResult is a composite score in [0,1] with the sub-scores and
// weights that produced it. Error is set when the score could not be computed;
// Note when it was computed from partial inputs.
type ConfidenceResult struct {
	Score       float64            `json:"confidence_score"`
	Components  map[string]float64 `json:"components,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
	RawFeatures map[string]any     `json:"raw_features,omitempty"`
	Derived     map[string]float64 `json:"derived,omitempty"`
	Transcript  string             `json:"transcript_text,omitempty"`
	Note        string             `json:"note,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// ErrorResult is the zero-score shape used when analysis could not run.
func ErrorResult(msg string) *ConfidenceResult {
	return &ConfidenceResult{Score: 0, Error: msg}
}

type StatementAnalysis struct {
	Start            float64           `json:"start"`
	End              float64           `json:"end"`
	Statement        string            `json:"statement"`
	SpeakerAlignment SpeakerAlignment  `json:"speaker_alignment"`
	SpeakerInfo      map[string]any    `json:"speaker_info"`
	AudioConfidence  *ConfidenceResult `json:"audio_confidence"`
	FacialConfidence *ConfidenceResult `json:"facial_confidence"`
	FacialNote       string            `json:"facial_note,omitempty"`
	Status           Status            `json:"status"`
	Error            string            `json:"error,omitempty"`
}

// ChunkDiagnostic is the per-chunk record kept in the run document.
type ChunkDiagnostic struct {
	Index               int     `json:"index"`
	StartSec            float64 `json:"start_sec"`
	EndSec              float64 `json:"end_sec"`
	SpeakerSegmentCount int     `json:"speaker_segment_count"`
	StatementCount      int     `json:"statement_count"`
	Status              Status  `json:"status"`
	SpeakerError        string  `json:"speaker_error,omitempty"`
	StatementError      string  `json:"statement_error,omitempty"`
}

type ChunkingReport struct {
	ChunkSeconds        float64           `json:"chunk_seconds"`
	ChunkCount          int               `json:"chunk_count"`
	PerChunkDiagnostics []ChunkDiagnostic `json:"per_chunk_diagnostics"`
}

// RunDocument is the single output document of one pipeline run.
type RunDocument struct {
	RunID              string              `json:"run_id"`
	InputFile          string              `json:"input_file"`
	Description        string              `json:"description"`
	HasVideoStream     bool                `json:"has_video_stream"`
	GeneratedAt        time.Time           `json:"generated_at"`
	TranscriptText     string              `json:"transcript_text"`
	TranscriptForLLM   string              `json:"transcript_for_llm"`
	TranscriptSegments []TranscriptSegment `json:"transcript_segments"`
	Chunking           ChunkingReport      `json:"chunking"`
	SpeakerSegments    []SpeakerSegment    `json:"speaker_segments"`
	Statements         []Statement         `json:"statements"`
	StatementAnalyses  []StatementAnalysis `json:"statement_analyses"`
}

// FailedChunks counts chunks whose diagnostics are not ok.
func (d *RunDocument) FailedChunks() int {
	n := 0
	for _, c := range d.Chunking.PerChunkDiagnostics {
		if c.Status != StatusOK {
			n++
		}
	}
	return n
}
