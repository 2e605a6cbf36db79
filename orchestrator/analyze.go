package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/schema"
)

const audioOnlyNote = "Input is audio-only; facial confidence unavailable."

// StatementAnalyzer builds the full analysis record of one statement. Every
// clip it extracts is removed before Analyze returns.
type StatementAnalyzer struct {
	Media           Media
	Resolver        *Resolver
	Identity        identity.Repository
	Audio           Scorer
	Facial          Scorer
	MinVoiceSeconds float64
	Log             logrus.FieldLogger
}

func (a *StatementAnalyzer) Analyze(ctx context.Context, mediaPath string, hasVideo bool, st schema.Statement, known []schema.SpeakerSegment) schema.StatementAnalysis {
	if st.End < st.Start {
		st.Start, st.End = st.End, st.Start
	}
	log := a.Log.WithFields(logrus.Fields{"start": st.Start, "end": st.End})
	out := schema.StatementAnalysis{
		Start:     st.Start,
		End:       st.End,
		Statement: st.Text,
		Status:    schema.StatusOK,
	}
	var problems []string

	clip, err := a.Media.ExtractClip(ctx, mediaPath, st.Start, st.End, media.Audio)
	if err != nil {
		log.WithError(err).Warn("audio clip extraction failed")
		out.AudioConfidence = schema.ErrorResult(err.Error())
		problems = append(problems, "audio: "+err.Error())
		clip = ""
	} else {
		defer media.Remove(clip)
		res, err := a.Audio.Score(ctx, clip)
		if err != nil {
			log.WithError(err).Warn("audio confidence failed")
			res = schema.ErrorResult(err.Error())
			problems = append(problems, "audio: "+err.Error())
		} else if res.Note != "" {
			log.WithField("note", res.Note).Warn("audio confidence computed from partial features")
			problems = append(problems, "audio: "+res.Note)
		}
		out.AudioConfidence = res
	}

	voiceClip := clip
	if st.End-st.Start < a.MinVoiceSeconds {
		voiceClip = ""
	}
	out.SpeakerAlignment = a.Resolver.Resolve(ctx, st, known, voiceClip)

	var id string
	if out.SpeakerAlignment.SpeakerID != nil {
		id = *out.SpeakerAlignment.SpeakerID
	}
	info, err := identity.Info(ctx, a.Identity, id)
	if err != nil {
		log.WithError(err).WithField("speaker_id", id).Warn("speaker lookup failed")
	}
	out.SpeakerInfo = info

	if !hasVideo {
		out.FacialNote = audioOnlyNote
	} else {
		out.FacialConfidence = a.facial(ctx, log, mediaPath, st, &problems)
	}

	if len(problems) > 0 {
		out.Status = schema.StatusDegraded
		out.Error = strings.Join(problems, "; ")
	}
	return out
}

func (a *StatementAnalyzer) facial(ctx context.Context, log logrus.FieldLogger, mediaPath string, st schema.Statement, problems *[]string) *schema.ConfidenceResult {
	clip, err := a.Media.ExtractClip(ctx, mediaPath, st.Start, st.End, media.Video)
	if err != nil {
		log.WithError(err).Warn("video clip extraction failed")
		*problems = append(*problems, "facial: "+err.Error())
		return schema.ErrorResult(err.Error())
	}
	defer media.Remove(clip)

	var res *schema.ConfidenceResult
	err = guard(func() (err error) {
		res, err = a.Facial.Score(ctx, clip)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("facial confidence failed")
		*problems = append(*problems, "facial: "+err.Error())
		return schema.ErrorResult(err.Error())
	}
	return res
}

// failedAnalysis is the record left behind by a statement-task that panicked.
func failedAnalysis(st schema.Statement, known []schema.SpeakerSegment, hasVideo bool, p any) schema.StatementAnalysis {
	msg := fmt.Sprintf("statement task panic: %v", p)
	out := schema.StatementAnalysis{
		Start:            st.Start,
		End:              st.End,
		Statement:        st.Text,
		SpeakerAlignment: ResolveByOverlap(st, known),
		SpeakerInfo:      map[string]any{},
		AudioConfidence:  schema.ErrorResult(msg),
		Status:           schema.StatusFailed,
		Error:            msg,
	}
	if hasVideo {
		out.FacialConfidence = schema.ErrorResult(msg)
	} else {
		out.FacialNote = audioOnlyNote
	}
	return out
}
