package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-companion-demo/companion/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftRecord is the wizard_drafts row
type DraftRecord struct {
	Key       string         `gorm:"primaryKey;size:191"`
	Payload   datatypes.JSON `gorm:"not null"`
	Step      string         `gorm:"size:32;not null"`
	ExpiresAt *time.Time     `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DraftRecord) TableName() string {
	return "wizard_drafts"
}

// GormStore keeps drafts in PostgreSQL
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl, now: time.Now}
}

// Migrate creates or updates the wizard_drafts table
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DraftRecord{}); err != nil {
		return fmt.Errorf("migrate wizard_drafts: %w", err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, key string) (*models.WizardDraft, error) {
	var rec DraftRecord
	err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var draft models.WizardDraft
	if err := json.Unmarshal(rec.Payload, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

func (s *GormStore) Save(ctx context.Context, key string, draft *models.WizardDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	rec := DraftRecord{
		Key:     key,
		Payload: datatypes.JSON(payload),
		Step:    string(draft.Step),
	}
	if exp := expiresAt(s.now(), s.ttl); !exp.IsZero() {
		rec.ExpiresAt = &exp
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "step", "expires_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&DraftRecord{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// PurgeExpired removes drafts past their expiry and returns how many were deleted
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).Delete(&DraftRecord{})
	return res.RowsAffected, res.Error
}
