package archive

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

// MatchRecord is one archived match outcome. The table is write-only at
// runtime; the server never reads it back.
type MatchRecord struct {
	ID         string `gorm:"primaryKey"`
	MatchID    string `gorm:"index;not null"`
	WinnerID   string
	LoserID    string
	Phase      string `gorm:"not null"`
	Turns      int
	DurationMS int64
	CreatedAt  time.Time
}

type Store struct {
	db *gorm.DB
}

// Open connects and migrates the archive table. An empty dsn disables
// archiving: it returns a nil store, and every method tolerates a nil
// receiver.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&MatchRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveResult(r match.Result) {
	if s == nil {
		return
	}

	rec := MatchRecord{
		ID:         uuid.NewString(),
		MatchID:    r.MatchID,
		WinnerID:   r.Winner,
		LoserID:    r.Loser,
		Phase:      string(r.Phase),
		Turns:      r.Turns,
		DurationMS: r.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		logger.Error("archive match result", "match", r.MatchID, "error", err)
	}
}
