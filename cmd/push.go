package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/claimlens/clients"
	"github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/schema"
)

type pushOpts struct {
	videoURL string
	title    string
	verifyIn time.Duration
}

func newPushCmd(a *app) *cobra.Command {
	var o pushOpts
	cmd := &cobra.Command{
		Use:   "push <result.json>",
		Short: "Register a finished run and its statements with the people/proposition API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.push(cmd.Context(), args[0], o)
		},
	}
	cmd.Flags().StringVar(&o.videoURL, "video-url", "", "public URL of the recording")
	cmd.Flags().StringVar(&o.title, "title", "", "video title (defaults to the input file name)")
	cmd.Flags().DurationVar(&o.verifyIn, "verify-in", 0, "how long after the run each proposition should be verified")
	return cmd
}

func (a *app) push(ctx context.Context, resultPath string, o pushOpts) error {
	c, log, err := a.load()
	if err != nil {
		return err
	}
	if c.Services.API.URL == "" {
		return fmt.Errorf("push: services.api.url is not configured")
	}
	doc, err := orchestrator.ReadDocument(resultPath)
	if err != nil {
		return err
	}

	api := clients.NewAPI(clients.NewHTTP(0, policy(c.Retry, log, nil)), c.Services.API.URL)
	return pushDoc(ctx, api, log, doc, o)
}

// pushDoc registers doc's video, then one proposition per statement analysis.
// A failed proposition does not stop the others.
func pushDoc(ctx context.Context, api *clients.API, log logrus.FieldLogger, doc *schema.RunDocument, o pushOpts) error {
	video, err := api.CreateVideo(ctx, videoFor(doc, o))
	if err != nil {
		return fmt.Errorf("push video: %w", err)
	}

	pushed := 0
	for _, an := range doc.StatementAnalyses {
		_, err := api.CreateProposition(ctx, clients.Proposition{
			SpeakerID: an.SpeakerAlignment.SpeakerID,
			Statement: an.Statement,
			VerifyAt:  doc.GeneratedAt.Add(o.verifyIn),
			VideoID:   video.VideoID,
		})
		if err != nil {
			log.WithError(err).WithField("statement", an.Statement).Warn("proposition not pushed")
			continue
		}
		pushed++
	}
	log.WithFields(logrus.Fields{
		"video_id":     video.VideoID,
		"propositions": pushed,
		"total":        len(doc.StatementAnalyses),
	}).Info("pushed run")
	if pushed < len(doc.StatementAnalyses) {
		return fmt.Errorf("push: %d of %d propositions failed", len(doc.StatementAnalyses)-pushed, len(doc.StatementAnalyses))
	}
	return nil
}

func videoFor(doc *schema.RunDocument, o pushOpts) clients.Video {
	title := o.title
	if title == "" {
		title = filepath.Base(doc.InputFile)
	}
	return clients.Video{
		VideoPath:   doc.InputFile,
		Title:       title,
		Description: doc.Description,
		VideoURL:    o.videoURL,
		Time:        doc.GeneratedAt,
	}
}
