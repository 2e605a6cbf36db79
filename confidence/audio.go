package confidence

import (
	"context"
	"fmt"

	"github.com/maastricht-university/claimlens/schema"
)

// AudioWeights are the fixed component weights of the audio score.
var AudioWeights = map[string]float64{
	"pitch_stability": 0.20,
	"speech_rate":     0.15,
	"pause_fluency":   0.25,
	"filler_control":  0.25,
	"voice_quality":   0.15,
}

const (
	fallbackPitchCV    = 1.0
	fallbackRangeRatio = 5.0
)

// ScoreAudio composites raw acoustic and temporal features into a bounded score.
func ScoreAudio(f AudioFeatures) schema.ConfidenceResult {
	cv, rangeRatio := fallbackPitchCV, fallbackRangeRatio
	if f.Pitch.F0Mean > 0 {
		cv = f.Pitch.F0Std / f.Pitch.F0Mean
		rangeRatio = f.Pitch.F0Range / f.Pitch.F0Mean
	}
	repFactor := clamp01(float64(f.Temporal.PauseCount) / 3)

	pitch := 0.4*gaussian(cv, 0.25, 0.15) + 0.6*gaussian(rangeRatio, 2.5, 1.5)
	durationScore := 1 - repFactor*(1-gaussian(f.Temporal.PauseMeanDuration, 0.25, 0.35))
	pause := 0.4*gaussian(f.Temporal.PauseRate, 5, 4) + 0.6*durationScore
	quality := 0.5*ratio(f.Quality.HNR, 15) +
		0.25*(1-ratio(f.Quality.Jitter, 0.03)) +
		0.25*(1-ratio(f.Quality.Shimmer, 0.15))

	components := map[string]float64{
		"pitch_stability": clamp01(pitch),
		"speech_rate":     clamp01(gaussian(f.Temporal.SpeechRateWPM, 150, 25)),
		"pause_fluency":   clamp01(pause),
		"filler_control":  clamp01(gaussian(f.Temporal.FillerRatePerMin, 0, 1.5)),
		"voice_quality":   clamp01(quality),
	}
	score := weighted(components, AudioWeights)

	for k, v := range components {
		components[k] = round(v, 4)
	}
	return schema.ConfidenceResult{
		Score:       round(score, 4),
		Components:  components,
		Weights:     copyWeights(AudioWeights),
		RawFeatures: f.raw(),
		Derived: map[string]float64{
			"pitch_cv":         round(cv, 4),
			"range_ratio":      round(rangeRatio, 4),
			"pause_rep_factor": round(repFactor, 4),
		},
	}
}

// AcousticExtractor pulls waveform features out of a mono WAV clip.
type AcousticExtractor interface {
	Extract(ctx context.Context, wavPath string) (Acoustic, error)
}

// WordTranscriber returns word timings for a short clip.
type WordTranscriber interface {
	Transcribe(ctx context.Context, path string) (schema.Transcript, error)
}

// Audio scores the vocal confidence of one statement clip.
type Audio struct {
	Extractor   AcousticExtractor
	Transcriber WordTranscriber
}

func (a *Audio) Score(ctx context.Context, wavPath string) (*schema.ConfidenceResult, error) {
	ac, err := a.Extractor.Extract(ctx, wavPath)
	if err != nil {
		return nil, fmt.Errorf("acoustic features: %w", err)
	}
	ac.Quality = VoiceQuality{
		Jitter:  finite(ac.Quality.Jitter),
		Shimmer: finite(ac.Quality.Shimmer),
		HNR:     finite(ac.Quality.HNR),
	}

	// Without word timings the temporal features read as zero and the
	// acoustic part still counts.
	tr, trErr := a.Transcriber.Transcribe(ctx, wavPath)
	if trErr != nil {
		tr = schema.Transcript{}
	}

	res := ScoreAudio(AudioFeatures{Acoustic: ac, Temporal: TemporalFeatures(tr.Words)})
	res.Transcript = tr.Text
	if trErr != nil {
		res.Note = fmt.Sprintf("clip transcription: %v", trErr)
	}
	return &res, nil
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
