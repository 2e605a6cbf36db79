package confidence

// Pitch summarizes voiced fundamental frequency in Hz.
type Pitch struct {
	F0Mean         float64 `json:"f0_mean"`
	F0Std          float64 `json:"f0_std"`
	F0Range        float64 `json:"f0_range"`
	F0Median       float64 `json:"f0_median"`
	VoicedFraction float64 `json:"voiced_fraction"`
}

// PitchFromFrames summarizes per-frame f0 estimates, where 0 marks an
// unvoiced frame. No voiced frames yields all zeros.
func PitchFromFrames(f0 []float64) Pitch {
	var voiced []float64
	for _, v := range f0 {
		if v > 0 {
			voiced = append(voiced, v)
		}
	}
	if len(voiced) == 0 {
		return Pitch{}
	}
	s := summarize(voiced)
	min := voiced[0]
	for _, v := range voiced {
		if v < min {
			min = v
		}
	}
	return Pitch{
		F0Mean:         s.Mean,
		F0Std:          s.Std,
		F0Range:        s.Max - min,
		F0Median:       median(voiced),
		VoicedFraction: float64(len(voiced)) / float64(len(f0)),
	}
}

type VoiceQuality struct {
	Jitter  float64 `json:"jitter"`
	Shimmer float64 `json:"shimmer"`
	HNR     float64 `json:"hnr"`
}

type Energy struct {
	Mean      float64   `json:"energy_mean"`
	Std       float64   `json:"energy_std"`
	Range     float64   `json:"energy_range"`
	MFCCMeans []float64 `json:"mfcc_means,omitempty"`
	MFCCStds  []float64 `json:"mfcc_stds,omitempty"`
}

// Acoustic is everything extracted from the waveform itself.
type Acoustic struct {
	Pitch   Pitch        `json:"pitch"`
	Quality VoiceQuality `json:"voice_quality"`
	Energy  Energy       `json:"energy"`
}

// AudioFeatures is the full input of the audio compositor.
type AudioFeatures struct {
	Acoustic
	Temporal Temporal `json:"temporal"`
}

func (f AudioFeatures) raw() map[string]any {
	return map[string]any{
		"f0_mean":             f.Pitch.F0Mean,
		"f0_std":              f.Pitch.F0Std,
		"f0_range":            f.Pitch.F0Range,
		"f0_median":           f.Pitch.F0Median,
		"voiced_fraction":     f.Pitch.VoicedFraction,
		"jitter":              f.Quality.Jitter,
		"shimmer":             f.Quality.Shimmer,
		"hnr":                 f.Quality.HNR,
		"speech_rate_wpm":     f.Temporal.SpeechRateWPM,
		"pause_count":         f.Temporal.PauseCount,
		"pause_mean_duration": f.Temporal.PauseMeanDuration,
		"pause_rate":          f.Temporal.PauseRate,
		"filler_count":        f.Temporal.FillerCount,
		"filler_rate_per_min": f.Temporal.FillerRatePerMin,
		"articulation_ratio":  f.Temporal.ArticulationRatio,
		"energy_mean":         f.Energy.Mean,
		"energy_std":          f.Energy.Std,
		"energy_range":        f.Energy.Range,
	}
}
