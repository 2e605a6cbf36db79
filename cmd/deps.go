package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/claimlens/acoustics"
	"github.com/maastricht-university/claimlens/clients"
	"github.com/maastricht-university/claimlens/confidence"
	"github.com/maastricht-university/claimlens/config"
	"github.com/maastricht-university/claimlens/fingerprint"
	"github.com/maastricht-university/claimlens/identity"
	"github.com/maastricht-university/claimlens/llm"
	"github.com/maastricht-university/claimlens/media"
	"github.com/maastricht-university/claimlens/metrics"
	"github.com/maastricht-university/claimlens/orchestrator"
	"github.com/maastricht-university/claimlens/retry"
	"github.com/maastricht-university/claimlens/store"
	"github.com/maastricht-university/claimlens/transcription"
)

func policy(r config.Retry, log logrus.FieldLogger, m *metrics.Metrics) retry.Policy {
	p := retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		Factor:       r.Factor,
		MaxDelay:     r.MaxDelay,
		Jitter:       r.Jitter,
		Log:          log,
	}
	if m != nil {
		p.OnRetry = m.OnRetry
	}
	return p
}

// closers collects shutdown hooks for opened stores.
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// buildDeps wires every collaborator from configuration. Optional services
// that are not configured are left out and the pipeline degrades around them.
func buildDeps(ctx context.Context, c *config.Root, log *logrus.Logger, m *metrics.Metrics) (orchestrator.Deps, closers, error) {
	var done closers
	pol := policy(c.Retry, log, m)
	ff := media.New(c.Paths.Temp, c.Analysis.SampleRate, c.Analysis.MinClipSeconds)
	h := clients.NewHTTP(0, pol)

	d := orchestrator.Deps{Media: ff, Log: log}
	if m != nil {
		d.Metrics = m
	}

	var base transcription.Transcriber
	switch c.Transcription.Provider {
	case "http":
		base = clients.NewASR(h, c.Services.ASR.URL)
	default:
		base = transcription.NewOpenAI(c.LLM, c.Transcription, ff, pol, log)
	}
	d.Transcriber = base
	if c.Stores.RedisAddr != "" {
		rdb, err := store.OpenRedis(ctx, c.Stores.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, transcripts will not be cached")
		} else {
			done = append(done, func() { _ = rdb.Close() })
			d.Transcriber = &transcription.Cached{
				Next:  base,
				Cache: store.NewRedisCache(rdb),
				Model: c.LLM.TranscriptionModel + "/" + c.Transcription.Provider,
				TTL:   c.Transcription.CacheTTL,
				Log:   log,
			}
		}
	}

	var people identity.Repository = identity.NewMemory()
	if c.Services.API.URL != "" {
		people = clients.NewAPI(h, c.Services.API.URL)
	}
	d.Identity = people

	chat := llm.New(c.LLM, pol, log)
	indexer := llm.NewIndexer(chat, people, c.LLM.MaxToolRounds)
	if c.Services.Search.URL != "" {
		indexer.WithSearch(clients.NewSearch(h, c.Services.Search.URL))
	}
	d.Indexer = indexer
	d.Extractor = llm.NewExtractor(chat)

	var extractor confidence.AcousticExtractor = acoustics.Native{}
	if c.Analysis.Acoustics == "remote" {
		if c.Services.Acoustic.URL == "" {
			done.close()
			return d, nil, fmt.Errorf("analysis.acoustics is remote but services.acoustic.url is empty")
		}
		extractor = clients.NewAcoustic(h, c.Services.Acoustic.URL)
	}
	d.Audio = &confidence.Audio{Extractor: extractor, Transcriber: base}

	if c.Services.Face.URL != "" {
		d.Facial = &confidence.Facial{
			Sampler:   ff,
			Detector:  clients.NewFace(h, c.Services.Face.URL),
			FrameRate: c.Analysis.FrameRate,
			MaxWidth:  c.Analysis.MaxFrameWidth,
		}
	} else {
		log.Info("services.face.url not set, facial confidence disabled")
	}

	if c.Services.Voice.URL != "" {
		var index fingerprint.Index = fingerprint.NewMemory()
		if c.Stores.PostgresDSN != "" {
			pg, err := fingerprint.OpenPGVector(ctx, c.Stores.PostgresDSN)
			if err != nil {
				done.close()
				return d, nil, fmt.Errorf("open voice index: %w", err)
			}
			done = append(done, func() { _ = pg.Close() })
			index = pg
		}
		voice := clients.NewVoice(h, c.Services.Voice.URL)
		d.Voice = &fingerprint.Matcher{Embedder: voice, Index: index, TopK: 3}
		d.Enroller = &fingerprint.Enroller{Clips: ff, Embedder: voice, Index: index, Log: log}
	} else {
		log.Info("services.voice.url not set, speakers resolve by overlap only")
	}

	sinks, more, err := openSinks(ctx, c, log)
	done = append(done, more...)
	if err != nil {
		done.close()
		return d, nil, err
	}
	d.Sinks = sinks
	return d, done, nil
}

func openSinks(ctx context.Context, c *config.Root, log logrus.FieldLogger) ([]orchestrator.Sink, closers, error) {
	var sinks []orchestrator.Sink
	var done closers
	if c.Stores.LedgerPath != "" {
		l, err := store.OpenLedger(c.Stores.LedgerPath)
		if err != nil {
			return nil, done, err
		}
		done = append(done, func() { _ = l.Close() })
		sinks = append(sinks, l)
	}
	if c.Stores.MongoURI != "" {
		client, err := store.OpenMongo(ctx, c.Stores.MongoURI)
		if err != nil {
			log.WithError(err).Warn("mongo unavailable, run documents stay on disk only")
		} else {
			done = append(done, func() { _ = client.Disconnect(context.Background()) })
			sinks = append(sinks, store.NewMongoSink(client.Database(c.Stores.MongoDatabase), c.Stores.MongoCollection))
		}
	}
	return sinks, done, nil
}
