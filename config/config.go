package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL string `yaml:"url"`
}
type Services struct {
	ASR      Service `yaml:"asr"`
	Face     Service `yaml:"face"`
	Voice    Service `yaml:"voice"`
	Acoustic Service `yaml:"acoustic"`
	API      Service `yaml:"api"`
	Search   Service `yaml:"search"`
}
type Chunking struct {
	ChunkSeconds float64 `yaml:"chunk_seconds"`
	MaxWorkers   int     `yaml:"max_workers"`
}
type Analysis struct {
	MaxWorkers      int     `yaml:"max_workers"`
	MinClipSeconds  float64 `yaml:"min_clip_seconds"`
	MinVoiceSeconds float64 `yaml:"min_voice_seconds"`
	FrameRate       float64 `yaml:"frame_rate"`
	MaxFrameWidth   int     `yaml:"max_frame_width"`
	SampleRate      int     `yaml:"sample_rate"`
	Acoustics       string  `yaml:"acoustics"` // native | remote
}
type Retry struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Factor       float64       `yaml:"factor"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Jitter       time.Duration `yaml:"jitter"`
}
type LLM struct {
	BaseURL            string  `yaml:"base_url"`
	APIKey             string  `yaml:"api_key"`
	Model              string  `yaml:"model"`
	TranscriptionModel string  `yaml:"transcription_model"`
	MaxToolRounds      int     `yaml:"max_tool_rounds"`
	Temperature        float32 `yaml:"temperature"`
}
type Transcription struct {
	Provider     string        `yaml:"provider"` // openai | http
	MaxUploadMB  int           `yaml:"max_upload_mb"`
	PieceSeconds float64       `yaml:"piece_seconds"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}
type Stores struct {
	RedisAddr       string `yaml:"redis_addr"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	LedgerPath      string `yaml:"ledger_path"`
}
type Root struct {
	Pipeline struct {
		Name      string `yaml:"name"`
		Version   string `yaml:"version"`
		LogLvl    string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"pipeline"`
	Chunking      Chunking      `yaml:"chunking"`
	Analysis      Analysis      `yaml:"analysis"`
	Retry         Retry         `yaml:"retry"`
	Services      Services      `yaml:"services"`
	LLM           LLM           `yaml:"llm"`
	Transcription Transcription `yaml:"transcription"`
	Stores        Stores        `yaml:"stores"`
	Paths         struct {
		Outputs string `yaml:"outputs"`
		Temp    string `yaml:"temp"`
	} `yaml:"paths"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func Defaults() *Root {
	var c Root
	c.Pipeline.Name = "claimlens"
	c.Pipeline.Version = "0.1.0"
	c.Pipeline.LogLvl = "info"
	c.Pipeline.LogFormat = "json"
	c.Chunking = Chunking{ChunkSeconds: 1200, MaxWorkers: 3}
	c.Analysis = Analysis{
		MaxWorkers:      8,
		MinClipSeconds:  0.75,
		MinVoiceSeconds: 0.2,
		FrameRate:       2,
		MaxFrameWidth:   640,
		SampleRate:      16000,
		Acoustics:       "native",
	}
	c.Retry = Retry{
		MaxAttempts:  5,
		InitialDelay: 800 * time.Millisecond,
		Factor:       2,
		MaxDelay:     8 * time.Second,
		Jitter:       250 * time.Millisecond,
	}
	c.LLM = LLM{
		BaseURL:            "https://api.groq.com/openai/v1",
		Model:              "llama-3.3-70b-versatile",
		TranscriptionModel: "whisper-large-v3-turbo",
		MaxToolRounds:      6,
	}
	c.Transcription = Transcription{Provider: "openai", MaxUploadMB: 24, PieceSeconds: 600, CacheTTL: 7 * 24 * time.Hour}
	c.Stores.MongoDatabase = "claimlens"
	c.Stores.MongoCollection = "runs"
	c.Paths.Outputs = "outputs"
	c.Paths.Temp = os.TempDir()
	return &c
}

// Load reads the YAML file at path, or the first of the default locations
// when path is empty, on top of Defaults. Environment variables prefixed
// CLAIMLENS_ and flags bound into v override file values.
func Load(path string, v *viper.Viper) (*Root, error) {
	cfg := Defaults()

	guess := []string{path}
	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess = []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
	}
	for _, p := range guess {
		f, err := os.Open(p)
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config open %s: %w", p, err)
		}
		err = yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("config decode %s: %w", p, err)
		}
		break
	}

	if v == nil {
		v = NewViper()
	}
	overlay(cfg, v)
	return cfg, cfg.Validate()
}

// NewViper returns a viper instance reading CLAIMLENS_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CLAIMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func overlay(c *Root, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("pipeline.log_level", &c.Pipeline.LogLvl)
	str("pipeline.log_format", &c.Pipeline.LogFormat)
	num("chunking.chunk_seconds", &c.Chunking.ChunkSeconds)
	integer("chunking.max_workers", &c.Chunking.MaxWorkers)
	integer("analysis.max_workers", &c.Analysis.MaxWorkers)
	str("analysis.acoustics", &c.Analysis.Acoustics)
	integer("retry.max_attempts", &c.Retry.MaxAttempts)
	str("services.asr.url", &c.Services.ASR.URL)
	str("services.face.url", &c.Services.Face.URL)
	str("services.voice.url", &c.Services.Voice.URL)
	str("services.acoustic.url", &c.Services.Acoustic.URL)
	str("services.api.url", &c.Services.API.URL)
	str("services.search.url", &c.Services.Search.URL)
	str("llm.base_url", &c.LLM.BaseURL)
	str("llm.api_key", &c.LLM.APIKey)
	str("llm.model", &c.LLM.Model)
	str("llm.transcription_model", &c.LLM.TranscriptionModel)
	str("transcription.provider", &c.Transcription.Provider)
	str("stores.redis_addr", &c.Stores.RedisAddr)
	str("stores.mongo_uri", &c.Stores.MongoURI)
	str("stores.postgres_dsn", &c.Stores.PostgresDSN)
	str("stores.ledger_path", &c.Stores.LedgerPath)
	str("paths.outputs", &c.Paths.Outputs)
	str("paths.temp", &c.Paths.Temp)
	str("metrics.addr", &c.Metrics.Addr)
}

func (c *Root) Validate() error {
	switch {
	case c.Chunking.ChunkSeconds <= 0:
		return fmt.Errorf("config: chunking.chunk_seconds must be positive, got %v", c.Chunking.ChunkSeconds)
	case c.Chunking.MaxWorkers < 1:
		return fmt.Errorf("config: chunking.max_workers must be at least 1")
	case c.Analysis.MaxWorkers < 1:
		return fmt.Errorf("config: analysis.max_workers must be at least 1")
	case c.Analysis.Acoustics != "native" && c.Analysis.Acoustics != "remote":
		return fmt.Errorf("config: analysis.acoustics must be native or remote, got %q", c.Analysis.Acoustics)
	case c.Transcription.Provider != "openai" && c.Transcription.Provider != "http":
		return fmt.Errorf("config: transcription.provider must be openai or http, got %q", c.Transcription.Provider)
	case c.Transcription.Provider == "http" && c.Services.ASR.URL == "":
		return fmt.Errorf("config: transcription.provider http needs services.asr.url")
	}
	return nil
}

// Dump renders the effective configuration as YAML with secrets masked.
func (c *Root) Dump() ([]byte, error) {
	cp := *c
	if cp.LLM.APIKey != "" {
		cp.LLM.APIKey = "***"
	}
	return yaml.Marshal(&cp)
}

func DurSeconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
