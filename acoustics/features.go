package acoustics

import (
	"context"
	"math"

	"github.com/maastricht-university/claimlens/confidence"
)

const (
	energyFrame = 2048
	energyHop   = 512

	minF0 = 75.0
	maxF0 = 600.0
	// normalized autocorrelation needed to call a frame voiced
	voicingThreshold = 0.45
	// frames quieter than this fraction of the loudest frame are unvoiced
	silenceRatio = 0.05
)

// Native extracts pitch, voice quality and energy in-process from a WAV clip.
// It does not compute MFCCs.
type Native struct{}

func (Native) Extract(ctx context.Context, wavPath string) (confidence.Acoustic, error) {
	sig, err := ReadWav(wavPath)
	if err != nil {
		return confidence.Acoustic{}, err
	}
	if err := ctx.Err(); err != nil {
		return confidence.Acoustic{}, err
	}
	return Analyze(sig), nil
}

// Analyze computes acoustic features for an in-memory signal.
func Analyze(sig Signal) confidence.Acoustic {
	frames := pitchTrack(sig)
	f0 := make([]float64, len(frames))
	for i, fr := range frames {
		f0[i] = fr.f0
	}
	return confidence.Acoustic{
		Pitch:   confidence.PitchFromFrames(f0),
		Quality: voiceQuality(frames),
		Energy:  energy(sig.Samples),
	}
}

func energy(x []float64) confidence.Energy {
	if len(x) == 0 {
		return confidence.Energy{}
	}
	var rms []float64
	for start := 0; ; start += energyHop {
		end := min(start+energyFrame, len(x))
		ss := 0.0
		for _, v := range x[start:end] {
			ss += v * v
		}
		rms = append(rms, math.Sqrt(ss/float64(end-start)))
		if end == len(x) {
			break
		}
	}
	mean, std := meanStd(rms)
	lo, hi := rms[0], rms[0]
	for _, v := range rms {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return confidence.Energy{Mean: mean, Std: std, Range: hi - lo}
}

type frame struct {
	f0   float64 // 0 when unvoiced
	corr float64 // normalized autocorrelation at the chosen lag
	peak float64 // max absolute amplitude
	rms  float64
}

func pitchTrack(sig Signal) []frame {
	sr := sig.SampleRate
	x := sig.Samples
	size := int(0.04 * float64(sr))
	hop := int(0.01 * float64(sr))
	minLag := int(float64(sr) / maxF0)
	maxLag := int(float64(sr) / minF0)
	if size <= maxLag || hop < 1 || len(x) < size {
		return nil
	}

	loudest := 0.0
	corrs := make([]float64, maxLag+1)
	buf := make([]float64, size)
	var out []frame
	for start := 0; start+size <= len(x); start += hop {
		m, s := meanStd(x[start : start+size])
		fr := frame{rms: s}
		for i, v := range x[start : start+size] {
			buf[i] = v - m
			fr.peak = math.Max(fr.peak, math.Abs(buf[i]))
		}
		loudest = math.Max(loudest, s)

		best := 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			corrs[lag] = normCorr(buf, lag)
			best = math.Max(best, corrs[lag])
		}
		if best >= voicingThreshold {
			// shortest lag near the best peak avoids octave errors
			for lag := minLag; lag <= maxLag; lag++ {
				if corrs[lag] >= 0.95*best && isPeak(corrs, lag, minLag, maxLag) {
					fr.f0 = float64(sr) / refine(corrs, lag, minLag, maxLag)
					fr.corr = corrs[lag]
					break
				}
			}
		}
		out = append(out, fr)
	}

	for i := range out {
		if out[i].rms < silenceRatio*loudest {
			out[i].f0, out[i].corr = 0, 0
		}
	}
	return out
}

func normCorr(x []float64, lag int) float64 {
	n := len(x) - lag
	var xy, xx, yy float64
	for i := 0; i < n; i++ {
		xy += x[i] * x[i+lag]
		xx += x[i] * x[i]
		yy += x[i+lag] * x[i+lag]
	}
	if xx == 0 || yy == 0 {
		return 0
	}
	return xy / math.Sqrt(xx*yy)
}

func isPeak(c []float64, lag, lo, hi int) bool {
	left := lag == lo || c[lag] >= c[lag-1]
	right := lag == hi || c[lag] >= c[lag+1]
	return left && right
}

// refine returns a sub-sample lag via parabolic interpolation.
func refine(c []float64, lag, lo, hi int) float64 {
	if lag <= lo || lag >= hi {
		return float64(lag)
	}
	a, b, d := c[lag-1], c[lag], c[lag+1]
	den := a - 2*b + d
	if den == 0 {
		return float64(lag)
	}
	return float64(lag) + 0.5*(a-d)/den
}

// voiceQuality derives local jitter and shimmer from consecutive voiced
// frames and HNR from the autocorrelation peak. Fewer than three voiced
// frames yields zero jitter and shimmer.
func voiceQuality(frames []frame) confidence.VoiceQuality {
	var periods, amps, corrs []float64
	var dPeriod, dAmp []float64
	prevVoiced := false
	for _, fr := range frames {
		if fr.f0 == 0 {
			prevVoiced = false
			continue
		}
		p := 1 / fr.f0
		if prevVoiced {
			dPeriod = append(dPeriod, math.Abs(p-periods[len(periods)-1]))
			dAmp = append(dAmp, math.Abs(fr.peak-amps[len(amps)-1]))
		}
		periods = append(periods, p)
		amps = append(amps, fr.peak)
		corrs = append(corrs, fr.corr)
		prevVoiced = true
	}

	var q confidence.VoiceQuality
	if len(corrs) > 0 {
		r, _ := meanStd(corrs)
		r = math.Min(math.Max(r, 1e-6), 0.999)
		q.HNR = 10 * math.Log10(r/(1-r))
	}
	if len(periods) < 3 || len(dPeriod) == 0 {
		return q
	}
	mp, _ := meanStd(periods)
	ma, _ := meanStd(amps)
	dp, _ := meanStd(dPeriod)
	da, _ := meanStd(dAmp)
	if mp > 0 {
		q.Jitter = dp / mp
	}
	if ma > 0 {
		q.Shimmer = da / ma
	}
	return q
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	m := sum / float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return m, math.Sqrt(ss / float64(len(v)))
}
