package schema

// TranscriptSegment is one timed span of transcribed speech, in seconds.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Transcript is the whole-file result of a transcription collaborator.
type Transcript struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
	Words    []Word              `json:"words"`
}

// Chunk is a bounded window of consecutive transcript segments.
type Chunk struct {
	Index    int                 `json:"index"`
	StartSec float64             `json:"start_sec"`
	EndSec   float64             `json:"end_sec"`
	Segments []TranscriptSegment `json:"segments"`
	Text     string              `json:"rendered_text"`
}

type SpeakerSegment struct {
	SpeakerID string  `json:"speaker_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

type Statement struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"statement"`
}

// ChunkRequest is what the per-chunk collaborators receive: the whole media
// file plus one chunk's rendered transcript.
type ChunkRequest struct {
	MediaPath   string
	Transcript  string
	Description string
	AudioOnly   bool
	StartSec    float64
	EndSec      float64
	Duration    float64 // whole recording, seconds
}
