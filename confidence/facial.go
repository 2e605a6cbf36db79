package confidence

import (
	"context"
	"fmt"
	"os"

	"github.com/maastricht-university/claimlens/schema"
)

var (
	ActionUnits = []string{
		"AU01", "AU02", "AU04", "AU05", "AU06", "AU07", "AU09", "AU10", "AU11", "AU12",
		"AU14", "AU15", "AU17", "AU20", "AU23", "AU24", "AU25", "AU26", "AU28", "AU43",
	}
	Emotions  = []string{"anger", "disgust", "fear", "happiness", "sadness", "surprise", "neutral"}
	PoseAxes  = []string{"Pitch", "Roll", "Yaw"}
	anxietyAU = []string{"AU01", "AU04", "AU15", "AU20", "AU28"}
	smileAU   = []string{"AU06", "AU12"}
)

const NoFacesError = "No faces detected"

// FacialWeights are the fixed component weights of the facial score.
var FacialWeights = map[string]float64{
	"composure":           0.25,
	"positive_affect":     0.20,
	"emotional_stability": 0.25,
	"gaze_stability":      0.15,
	"neutrality":          0.15,
}

// FaceDetection is one detected face in one sampled frame.
type FaceDetection struct {
	Frame    int                `json:"frame"`
	AUs      map[string]float64 `json:"aus"`
	Emotions map[string]float64 `json:"emotions"`
	Pose     map[string]float64 `json:"pose"`
}

// FacialFeatures aggregates detections across a clip.
type FacialFeatures struct {
	FramesExtracted int             `json:"frames_extracted"`
	FacesDetected   int             `json:"faces_detected"`
	AUs             map[string]Stat `json:"aus"`
	Emotions        map[string]Stat `json:"emotions"`
	Pose            map[string]Stat `json:"pose"`
	DominantCounts  map[string]int  `json:"dominant_emotion_counts"`
}

func column(dets []FaceDetection, pick func(FaceDetection) map[string]float64, key string) []float64 {
	out := make([]float64, 0, len(dets))
	for _, d := range dets {
		if v, ok := pick(d)[key]; ok {
			out = append(out, v)
		}
	}
	return out
}

// AggregateFaces summarizes per-face detections. Missing values are skipped.
func AggregateFaces(frames int, dets []FaceDetection) FacialFeatures {
	f := FacialFeatures{
		FramesExtracted: frames,
		FacesDetected:   len(dets),
		AUs:             map[string]Stat{},
		Emotions:        map[string]Stat{},
		Pose:            map[string]Stat{},
		DominantCounts:  map[string]int{},
	}
	aus := func(d FaceDetection) map[string]float64 { return d.AUs }
	emos := func(d FaceDetection) map[string]float64 { return d.Emotions }
	pose := func(d FaceDetection) map[string]float64 { return d.Pose }

	for _, k := range ActionUnits {
		f.AUs[k] = summarize(column(dets, aus, k))
	}
	for _, k := range Emotions {
		s := summarize(column(dets, emos, k))
		s.Max = 0
		f.Emotions[k] = s
	}
	for _, k := range PoseAxes {
		s := summarize(column(dets, pose, k))
		s.Max = 0
		f.Pose[k] = s
	}
	for _, d := range dets {
		if dom := dominant(d.Emotions); dom != "" {
			f.DominantCounts[dom]++
		}
	}
	return f
}

func dominant(probs map[string]float64) string {
	best, bestV := "", -1.0
	for _, k := range Emotions {
		if v, ok := probs[k]; ok && v > bestV {
			best, bestV = k, v
		}
	}
	return best
}

// ScoreFacial composites aggregated facial features. Zero faces yields a
// zero score carrying NoFacesError.
func ScoreFacial(f FacialFeatures) schema.ConfidenceResult {
	if f.FacesDetected == 0 {
		return schema.ConfidenceResult{
			Score:       0,
			Error:       NoFacesError,
			RawFeatures: map[string]any{"frames_extracted": f.FramesExtracted},
		}
	}

	anxiety := 0.0
	for _, k := range anxietyAU {
		anxiety += 0.2 * f.AUs[k].Mean
	}
	smile := 0.0
	for _, k := range smileAU {
		smile += f.AUs[k].Mean
	}
	smile /= float64(len(smileAU))

	emoStd := 0.0
	for _, k := range Emotions {
		emoStd += f.Emotions[k].Std
	}
	emoStd /= float64(len(Emotions))

	neutralRatio := float64(f.DominantCounts["neutral"]) / float64(f.FacesDetected)

	components := map[string]float64{
		"composure":           clamp01(1 - clamp01(anxiety)),
		"positive_affect":     clamp01(0.5*smile + 0.5*f.Emotions["happiness"].Mean),
		"emotional_stability": clamp01(gaussian(emoStd, 0, 0.15)),
		"gaze_stability":      clamp01(0.5*gaussian(f.Pose["Yaw"].Std, 0, 5) + 0.5*gaussian(f.Pose["Pitch"].Std, 0, 5)),
		"neutrality":          clamp01(0.5*neutralRatio + 0.5*f.Emotions["neutral"].Mean),
	}
	score := weighted(components, FacialWeights)
	for k, v := range components {
		components[k] = round(v, 4)
	}
	return schema.ConfidenceResult{
		Score:      round(score, 4),
		Components: components,
		Weights:    copyWeights(FacialWeights),
		RawFeatures: map[string]any{
			"frames_extracted":        f.FramesExtracted,
			"faces_detected":          f.FacesDetected,
			"aus":                     f.AUs,
			"emotions":                f.Emotions,
			"pose":                    f.Pose,
			"dominant_emotion_counts": f.DominantCounts,
		},
		Derived: map[string]float64{
			"anxiety_index":    round(anxiety, 4),
			"mean_emotion_std": round(emoStd, 4),
			"neutral_ratio":    round(neutralRatio, 4),
		},
	}
}

// FrameSampler turns a video clip into still frames in a temp directory.
type FrameSampler interface {
	ExtractFrames(ctx context.Context, path string, fps float64, maxWidth int) (dir string, frames []string, err error)
}

// FaceDetector runs face and action-unit detection over still frames.
type FaceDetector interface {
	DetectFaces(ctx context.Context, frames []string) ([]FaceDetection, error)
}

// Facial scores the facial confidence of one statement video clip.
type Facial struct {
	Sampler   FrameSampler
	Detector  FaceDetector
	FrameRate float64
	MaxWidth  int
}

func (fc *Facial) Score(ctx context.Context, videoPath string) (*schema.ConfidenceResult, error) {
	dir, frames, err := fc.Sampler.ExtractFrames(ctx, videoPath, fc.FrameRate, fc.MaxWidth)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if len(frames) == 0 {
		res := ScoreFacial(FacialFeatures{})
		return &res, nil
	}
	dets, err := fc.Detector.DetectFaces(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("face detection: %w", err)
	}
	res := ScoreFacial(AggregateFaces(len(frames), dets))
	return &res, nil
}
