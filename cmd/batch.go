package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/claimlens/clients"
	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/orchestrator"
)

// mediaExts are tried in order when a task names no file.
var mediaExts = []string{".mp4", ".mkv", ".webm", ".mov", ".avi", ".m4a", ".mp3", ".wav"}

// Task is one entry of a tasks file, as written by the discovery crawler.
type Task struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	VideoURL string `json:"video_url"`
	Path     string `json:"path"`
}

type batchOpts struct {
	mediaDir     string
	resultsDir   string
	skipAnalysis bool
	skipPush     bool
	dryRun       bool
	push         pushOpts
}

func newBatchCmd(a *app) *cobra.Command {
	var o batchOpts
	cmd := &cobra.Command{
		Use:   "batch <tasks.json>",
		Short: "Analyse and push every recording listed in a tasks file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.batch(ctx, cmd.OutOrStdout(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.mediaDir, "media-dir", "./downloads", "directory holding <video_id>.<ext> recordings")
	f.StringVar(&o.resultsDir, "results-dir", "./results", "directory for <video_id>.json run documents")
	f.BoolVar(&o.skipAnalysis, "skip-analysis", false, "only push run documents that already exist")
	f.BoolVar(&o.skipPush, "skip-push", false, "analyse without pushing")
	f.BoolVar(&o.dryRun, "dry-run", false, "print what would be done")
	f.DurationVar(&o.push.verifyIn, "verify-in", 0, "how long after each run its propositions should be verified")
	return cmd
}

func readTasks(path string) ([]Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return tasks, nil
}

// locate returns the task's recording, or "" when none is on disk.
func (t Task) locate(mediaDir string) string {
	if t.Path != "" {
		if _, err := os.Stat(t.Path); err == nil {
			return t.Path
		}
		return ""
	}
	for _, ext := range mediaExts {
		p := filepath.Join(mediaDir, t.VideoID+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (t Task) title() string {
	if t.Title != "" {
		return t.Title
	}
	return t.VideoID
}

// batcher holds what is shared across tasks. The pipeline is built on first
// use so push-only and dry runs need no analysis services.
type batcher struct {
	ctx  context.Context
	cfg  *config.Root
	log  *logrus.Logger
	out  io.Writer
	o    batchOpts
	api  *clients.API
	p    *orchestrator.Pipeline
	done closers
}

func (a *app) batch(ctx context.Context, out io.Writer, tasksPath string, o batchOpts) error {
	tasks, err := readTasks(tasksPath)
	if err != nil {
		return err
	}
	c, log, err := a.load()
	if err != nil {
		return err
	}
	if !o.skipPush && !o.dryRun && c.Services.API.URL == "" {
		return fmt.Errorf("batch: services.api.url is not configured (use --skip-push)")
	}
	if !o.dryRun {
		if err := os.MkdirAll(o.resultsDir, 0o755); err != nil {
			return err
		}
	}

	b := &batcher{ctx: ctx, cfg: c, log: log, out: out, o: o}
	if c.Services.API.URL != "" {
		b.api = clients.NewAPI(clients.NewHTTP(0, policy(c.Retry, log, nil)), c.Services.API.URL)
	}
	defer func() { b.done.close() }()

	failed := map[string]string{}
	var order []string
	for i, t := range tasks {
		fmt.Fprintf(out, "[%d/%d] %s - %s\n", i+1, len(tasks), t.VideoID, t.title())
		if err := b.one(t); err != nil {
			fmt.Fprintf(out, "  failed: %v\n", err)
			log.WithError(err).WithField("video_id", t.VideoID).Warn("batch task failed")
			failed[t.VideoID] = err.Error()
			order = append(order, t.VideoID)
		}
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Fprintf(out, "Finished: %d/%d succeeded\n", len(tasks)-len(failed), len(tasks))
	if len(failed) == 0 {
		return nil
	}
	fmt.Fprintf(out, "Failed (%d):\n", len(failed))
	for _, id := range order {
		fmt.Fprintf(out, "  %s: %s\n", id, failed[id])
	}
	return fmt.Errorf("batch: %d of %d tasks failed", len(failed), len(tasks))
}

// one analyses a task unless its document exists, then pushes it.
func (b *batcher) one(t Task) error {
	if t.VideoID == "" {
		return errors.New("task has no video_id")
	}
	result := filepath.Join(b.o.resultsDir, t.VideoID+".json")
	_, statErr := os.Stat(result)
	exists := statErr == nil

	switch {
	case b.o.skipAnalysis && !exists:
		return fmt.Errorf("no run document at %s", result)
	case exists:
		fmt.Fprintf(b.out, "  using existing analysis: %s\n", result)
	default:
		media := t.locate(b.o.mediaDir)
		if media == "" {
			return fmt.Errorf("no recording found for %s in %s", t.VideoID, b.o.mediaDir)
		}
		if b.o.dryRun {
			fmt.Fprintf(b.out, "  [dry-run] would analyse %s -> %s\n", media, result)
			break
		}
		p, err := b.pipeline()
		if err != nil {
			return err
		}
		if _, err := analyse(b.ctx, p, b.log, media, t.title(), result); err != nil {
			return fmt.Errorf("analysis: %w", err)
		}
		fmt.Fprintf(b.out, "  analysis output: %s\n", result)
	}

	if b.o.skipPush {
		return nil
	}
	if b.o.dryRun {
		fmt.Fprintf(b.out, "  [dry-run] would push %s\n", result)
		return nil
	}
	doc, err := orchestrator.ReadDocument(result)
	if err != nil {
		return err
	}
	o := b.o.push
	o.title, o.videoURL = t.title(), t.VideoURL
	if err := pushDoc(b.ctx, b.api, b.log, doc, o); err != nil {
		return err
	}
	fmt.Fprintln(b.out, "  push complete")
	return nil
}

func (b *batcher) pipeline() (*orchestrator.Pipeline, error) {
	if b.p != nil {
		return b.p, nil
	}
	p, done, err := newPipeline(b.ctx, b.cfg, b.log)
	if err != nil {
		return nil, err
	}
	b.p, b.done = p, done
	return p, nil
}
