package fingerprint

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maastricht-university/claimlens/schema"
)

type voicePrint struct {
	ID        uint            `gorm:"primaryKey"`
	SpeakerID string          `gorm:"column:speaker_id;index"`
	StartSec  float64         `gorm:"column:start_sec"`
	EndSec    float64         `gorm:"column:end_sec"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt time.Time
}

func (voicePrint) TableName() string { return "voice_fingerprints" }

// PGVector stores fingerprints in Postgres and ranks them with the pgvector
// cosine distance operator.
type PGVector struct {
	db *gorm.DB
}

func OpenPGVector(ctx context.Context, dsn string) (*PGVector, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&voicePrint{}); err != nil {
		return nil, fmt.Errorf("migrate voice_fingerprints: %w", err)
	}
	return &PGVector{db: db}, nil
}

func NewPGVector(db *gorm.DB) *PGVector { return &PGVector{db: db} }

func (p *PGVector) Add(ctx context.Context, fp Fingerprint) error {
	row := voicePrint{
		SpeakerID: fp.SpeakerID,
		StartSec:  fp.Start,
		EndSec:    fp.End,
		Embedding: pgvector.NewVector(fp.Embedding),
	}
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *PGVector) Nearest(ctx context.Context, emb []float32, k int) ([]schema.VoiceMatch, error) {
	if k <= 0 {
		k = 3
	}
	var rows []struct {
		SpeakerID string
		StartSec  float64
		EndSec    float64
		Distance  float64
	}
	err := p.db.WithContext(ctx).
		Model(&voicePrint{}).
		Select("speaker_id, start_sec, end_sec, embedding <=> ? AS distance", pgvector.NewVector(emb)).
		Where("vector_dims(embedding) = ?", len(emb)).
		Order("distance").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]schema.VoiceMatch, len(rows))
	for i, r := range rows {
		out[i] = schema.VoiceMatch{SpeakerID: r.SpeakerID, Distance: r.Distance, Start: r.StartSec, End: r.EndSec}
	}
	return out, nil
}

func (p *PGVector) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
