// Package store persists the audit trail (bids, picks, role assignments) and
// the TTL'd session snapshot blob in Postgres. Audit rows are append-only and
// never updated; the snapshot is an upsert keyed by session id.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

type AuditRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	Version   int
	Type      string
	TeamID    string
	PlayerID  string
	Amount    int
	Role      string
	Forced    bool
	CreatedAt time.Time
}

type SessionRecord struct {
	SessionID string `gorm:"primaryKey"`
	Version   int
	Deadline  time.Time
	State     []byte
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

type Store struct {
	db  *gorm.DB
	ttl time.Duration
}

func New(dsn string, ttl time.Duration) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&AuditRecord{}, &SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// RecordEvents appends one audit row per allocation event. Transitions that
// carry no allocation (ticks, turn announcements) are not audited.
func (s *Store) RecordEvents(ctx context.Context, sessionID string, version int, events []engine.Event) error {
	rows := rowsFromEvents(sessionID, version, events)
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, sessionID string, version int, deadline time.Time, state any) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	rec := SessionRecord{
		SessionID: sessionID,
		Version:   version,
		Deadline:  deadline,
		State:     blob,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// StartPurgeLoop enforces the snapshot TTL in the background: PurgeExpired
// runs every interval until ctx is done.
func (s *Store) StartPurgeLoop(ctx context.Context, interval time.Duration, log *zap.Logger) {
	go purgeLoop(ctx, interval, s.PurgeExpired, log)
}

func purgeLoop(ctx context.Context, interval time.Duration, purge func(context.Context) error, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := purge(ctx); err != nil {
				log.Error("purge expired snapshots", zap.Error(err))
			}
		}
	}
}

// PurgeExpired removes snapshot blobs past their TTL. Audit rows are kept.
func (s *Store) PurgeExpired(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&SessionRecord{}).Error
	if err != nil {
		return fmt.Errorf("purge expired: %w", err)
	}
	return nil
}

func rowsFromEvents(sessionID string, version int, events []engine.Event) []AuditRecord {
	var rows []AuditRecord
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtBidPlaced, engine.EvtNomineeSold, engine.EvtPickMade, engine.EvtRoleSelected:
		default:
			continue
		}
		rows = append(rows, AuditRecord{
			SessionID: sessionID,
			Version:   version,
			Type:      string(ev.Type),
			TeamID:    ev.TeamID,
			PlayerID:  ev.PlayerID,
			Amount:    ev.Amount,
			Role:      string(ev.Role),
			Forced:    ev.Forced,
		})
	}
	return rows
}
