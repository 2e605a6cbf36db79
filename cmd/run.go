package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/metrics"
	"github.com/maastricht-university/claimlens/orchestrator"
)

func newRunCmd(a *app) *cobra.Command {
	var description, output string
	cmd := &cobra.Command{
		Use:   "run <media-file>",
		Short: "Analyse one audio or video recording and write result.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, args[0], description, output)
		},
	}
	f := cmd.Flags()
	f.StringVar(&description, "description", "", "event description passed to speaker identification")
	f.StringVarP(&output, "output", "o", "", "write the result here instead of <outputs>/run_<timestamp>/result.json")
	f.Float64("chunk-seconds", 0, "transcript window length in seconds")
	f.Int("chunk-workers", 0, "concurrent chunks")
	f.Int("statement-workers", 0, "concurrent statement analyses")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	a.bind(cmd, "chunking.chunk_seconds", "chunk-seconds")
	a.bind(cmd, "chunking.max_workers", "chunk-workers")
	a.bind(cmd, "analysis.max_workers", "statement-workers")
	a.bind(cmd, "metrics.addr", "metrics-addr")
	return cmd
}

func (a *app) run(ctx context.Context, mediaPath, description, output string) error {
	if _, err := os.Stat(mediaPath); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	c, log, err := a.load()
	if err != nil {
		return err
	}
	p, done, err := newPipeline(ctx, c, log)
	if err != nil {
		return err
	}
	defer done.close()

	path, err := analyse(ctx, p, log, mediaPath, description, output)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// newPipeline wires the collaborators and, when configured, starts the
// metrics endpoint for the lifetime of ctx.
func newPipeline(ctx context.Context, c *config.Root, log *logrus.Logger) (*orchestrator.Pipeline, closers, error) {
	m := metrics.New()
	if c.Metrics.Addr != "" {
		m.Serve(ctx, c.Metrics.Addr, log)
	}
	deps, done, err := buildDeps(ctx, c, log, m)
	if err != nil {
		return nil, nil, err
	}
	p, err := orchestrator.NewPipeline(c, deps)
	if err != nil {
		done.close()
		return nil, nil, err
	}
	return p, done, nil
}

// analyse runs one recording and persists the document, to output when given.
func analyse(ctx context.Context, p *orchestrator.Pipeline, log logrus.FieldLogger, mediaPath, description, output string) (string, error) {
	doc, err := p.Run(ctx, mediaPath, description)
	if err != nil {
		return "", err
	}
	path := output
	if path == "" {
		path, err = p.Persist(ctx, doc)
	} else {
		err = p.PersistTo(ctx, doc, path)
	}
	if err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{
		"run_id":        doc.RunID,
		"output":        path,
		"statements":    len(doc.StatementAnalyses),
		"failed_chunks": doc.FailedChunks(),
	}).Info("run complete")
	return path, nil
}
