package confidence

import (
	"strings"
	"unicode"

	"github.com/maastricht-university/claimlens/schema"
)

const minPauseSeconds = 0.15

var fillers = map[string]bool{
	"uh": true, "um": true, "er": true, "ah": true, "like": true,
	"basically": true, "maybe": true, "probably": true, "guess": true, "somehow": true,
}

// Temporal holds timing statistics from a word-level transcript.
type Temporal struct {
	SpeechRateWPM     float64 `json:"speech_rate_wpm"`
	PauseCount        int     `json:"pause_count"`
	PauseMeanDuration float64 `json:"pause_mean_duration"`
	PauseRate         float64 `json:"pause_rate"` // pauses per minute
	FillerCount       int     `json:"filler_count"`
	FillerRatePerMin  float64 `json:"filler_rate_per_min"`
	ArticulationRatio float64 `json:"articulation_ratio"`
}

// TemporalFeatures derives rates from word timings. Fewer than two words or a
// non-positive span yields all zeros.
func TemporalFeatures(words []schema.Word) Temporal {
	if len(words) < 2 {
		return Temporal{}
	}
	span := words[len(words)-1].End - words[0].Start
	if span <= 0 {
		return Temporal{}
	}
	minutes := span / 60

	var pauses []float64
	speaking := 0.0
	for i, w := range words {
		speaking += max(0, w.End-w.Start)
		if i == 0 {
			continue
		}
		if gap := w.Start - words[i-1].End; gap > minPauseSeconds {
			pauses = append(pauses, gap)
		}
	}

	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = normalizeWord(w.Word)
	}
	fillerCount := 0
	for _, tok := range tokens {
		if fillers[tok] {
			fillerCount++
		}
	}

	t := Temporal{
		SpeechRateWPM:     float64(len(words)) / minutes,
		PauseCount:        len(pauses),
		PauseRate:         float64(len(pauses)) / minutes,
		FillerCount:       fillerCount,
		FillerRatePerMin:  float64(fillerCount) / minutes,
		ArticulationRatio: clamp01(speaking / span),
	}
	if len(pauses) > 0 {
		t.PauseMeanDuration = summarize(pauses).Mean
	}
	return t
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}
