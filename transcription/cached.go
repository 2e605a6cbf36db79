package transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/schema"
)

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (schema.Transcript, error)
}

// Cache stores JSON values with a TTL. A miss returns false with no error.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Cached memoizes transcripts by file content and model. Cache failures
// are logged and never fail a transcription.
type Cached struct {
	Next  Transcriber
	Cache Cache
	Model string
	TTL   time.Duration
	Log   logrus.FieldLogger
}

func (c *Cached) Transcribe(ctx context.Context, path string) (schema.Transcript, error) {
	key, err := c.key(path)
	if err != nil {
		return c.Next.Transcribe(ctx, path)
	}
	log := c.logger().WithFields(logrus.Fields{"path": path, "key": key})

	var t schema.Transcript
	hit, err := c.Cache.GetJSON(ctx, key, &t)
	if err != nil {
		log.WithError(err).Warn("transcript cache read failed")
	}
	if hit {
		log.Info("transcript cache hit")
		return t, nil
	}

	t, err = c.Next.Transcribe(ctx, path)
	if err != nil {
		return t, err
	}
	if err := c.Cache.SetJSON(ctx, key, t, c.TTL); err != nil {
		log.WithError(err).Warn("transcript cache write failed")
	}
	return t, nil
}

func (c *Cached) key(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("claimlens:transcript:%s:%s", c.Model, hex.EncodeToString(h.Sum(nil))), nil
}

func (c *Cached) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
