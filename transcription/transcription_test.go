package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/logger"
	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/retry"
	"github.com/maastricht-university/claimlens/schema"
)

const verbose = `{"task":"transcribe","language":"english","duration":4.0,"text":" hello there ",
"segments":[{"id":0,"start":0.0,"end":2.0,"text":" hello"},{"id":1,"start":2.0,"end":4.0,"text":" there"}],
"words":[{"word":"hello","start":0.1,"end":0.6},{"word":"there","start":2.1,"end":2.5}]}`

func writeFile(t *testing.T, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func fakeWhisper(t *testing.T, calls *atomic.Int32, fail int32) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		n := calls.Add(1)
		if n <= fail {
			http.Error(w, `{"error":{"message":"busy"}}`, http.StatusServiceUnavailable)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil || r.FormValue("response_format") != "verbose_json" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verbose))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func noSleep() retry.Policy {
	p := retry.Default()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type fakeSplitter struct {
	dur   float64
	clips []string
	spans [][2]float64
}

func (f *fakeSplitter) Duration(context.Context, string) (float64, error) { return f.dur, nil }

func (f *fakeSplitter) ExtractClip(_ context.Context, path string, start, end float64, _ media.Kind) (string, error) {
	p := filepath.Join(filepath.Dir(path), "piece_"+time.Now().Format("150405.000000000")+".wav")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		return "", err
	}
	f.clips = append(f.clips, p)
	f.spans = append(f.spans, [2]float64{start, end})
	return p, nil
}

func TestOpenAITranscribeRetriesAndMaps(t *testing.T) {
	var calls atomic.Int32
	base := fakeWhisper(t, &calls, 1)
	o := NewOpenAI(config.LLM{BaseURL: base, APIKey: "k", TranscriptionModel: "whisper"},
		config.Transcription{MaxUploadMB: 24}, nil, noSleep(), logger.Discard())

	tr, err := o.Transcribe(context.Background(), writeFile(t, 128))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if tr.Text != "hello there" || len(tr.Segments) != 2 || tr.Segments[1].Text != "there" {
		t.Fatalf("transcript = %+v", tr)
	}
	if len(tr.Words) != 2 || tr.Words[1].Start != 2.1 {
		t.Errorf("words = %+v", tr.Words)
	}
}

func TestOpenAISplitsOversizedInput(t *testing.T) {
	var calls atomic.Int32
	base := fakeWhisper(t, &calls, 0)
	split := &fakeSplitter{dur: 25}
	o := NewOpenAI(config.LLM{BaseURL: base, APIKey: "k"},
		config.Transcription{MaxUploadMB: 1, PieceSeconds: 10}, split, noSleep(), logger.Discard())
	o.maxBytes = 64

	tr, err := o.Transcribe(context.Background(), writeFile(t, 128))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 || len(split.spans) != 3 {
		t.Fatalf("calls=%d spans=%v", calls.Load(), split.spans)
	}
	if split.spans[2] != [2]float64{20, 25} {
		t.Errorf("last span = %v", split.spans[2])
	}
	if len(tr.Segments) != 6 || tr.Segments[2].Start != 10 || tr.Segments[5].End != 24 {
		t.Errorf("segments = %+v", tr.Segments)
	}
	if tr.Duration != 25 {
		t.Errorf("duration = %v", tr.Duration)
	}
	for _, c := range split.clips {
		if _, err := os.Stat(c); !os.IsNotExist(err) {
			t.Errorf("piece %s not removed", c)
		}
	}
}

func TestMergeOffsets(t *testing.T) {
	a := schema.Transcript{Text: "a", Language: "en", Duration: 10,
		Segments: []schema.TranscriptSegment{{Start: 1, End: 2, Text: "a"}}}
	b := schema.Transcript{Text: "b", Duration: 5,
		Words: []schema.Word{{Start: 0.5, End: 1, Word: "b"}}}
	m := Merge([]schema.Transcript{a, b}, []float64{0, 10})
	if m.Text != "a b" || m.Language != "en" || m.Duration != 15 {
		t.Fatalf("merged = %+v", m)
	}
	if m.Words[0].Start != 10.5 || m.Segments[0].Start != 1 {
		t.Errorf("offsets not applied: %+v", m)
	}
}

type memCache struct {
	data map[string][]byte
	fail bool
}

func (m *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	if m.fail {
		return false, errors.New("down")
	}
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	if m.fail {
		return errors.New("down")
	}
	b, err := json.Marshal(v)
	m.data[key] = b
	return err
}

type countingTranscriber struct{ n int }

func (c *countingTranscriber) Transcribe(context.Context, string) (schema.Transcript, error) {
	c.n++
	return schema.Transcript{Text: "cached", Segments: []schema.TranscriptSegment{{Start: 0, End: 1, Text: "cached"}}}, nil
}

func TestCachedHitsOnSameContent(t *testing.T) {
	next := &countingTranscriber{}
	c := &Cached{Next: next, Cache: &memCache{data: map[string][]byte{}}, Model: "w", TTL: time.Hour, Log: logger.Discard()}
	path := writeFile(t, 32)

	for range 3 {
		tr, err := c.Transcribe(context.Background(), path)
		if err != nil || tr.Text != "cached" {
			t.Fatalf("%+v %v", tr, err)
		}
	}
	if next.n != 1 {
		t.Errorf("underlying calls = %d, want 1", next.n)
	}
}

func TestCachedSurvivesCacheOutage(t *testing.T) {
	next := &countingTranscriber{}
	c := &Cached{Next: next, Cache: &memCache{fail: true}, Model: "w", Log: logger.Discard()}
	path := writeFile(t, 32)
	for range 2 {
		if _, err := c.Transcribe(context.Background(), path); err != nil {
			t.Fatal(err)
		}
	}
	if next.n != 2 {
		t.Errorf("underlying calls = %d, want 2", next.n)
	}
}
