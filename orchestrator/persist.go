package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maastricht-university/claimlens/schema"
)

func mkRunDir(outputsRoot string, at time.Time) (string, error) {
	dir := filepath.Join(outputsRoot, "run_"+at.Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadDocument loads a run document written by Persist.
func ReadDocument(path string) (*schema.RunDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var doc schema.RunDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &doc, nil
}

// Persist writes doc to <outputs>/run_<timestamp>/result.json and hands it to
// every configured sink.
func (p *Pipeline) Persist(ctx context.Context, doc *schema.RunDocument) (string, error) {
	dir, err := mkRunDir(p.cfg.Paths.Outputs, doc.GeneratedAt)
	if err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(dir, "result.json")
	return path, p.PersistTo(ctx, doc, path)
}

// PersistTo writes doc to path, creating its directory, then hands it to every
// configured sink. Sink failures are logged, not returned.
func (p *Pipeline) PersistTo(ctx context.Context, doc *schema.RunDocument, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(path, doc); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, s := range p.deps.Sinks {
		if err := s.Save(ctx, doc, path); err != nil {
			p.log.WithError(err).WithField("sink", fmt.Sprintf("%T", s)).Warn("sink save failed")
		}
	}
	return nil
}
