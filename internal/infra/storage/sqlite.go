package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"lightsats/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage defines the interface for data persistence
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance. An empty path resolves
// to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.User{}, &domain.Tip{}, &domain.Withdrawal{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "Lightsats", "data", "lightsats.db"), nil
}

// ======================================================================================
// User Operations
// ======================================================================================

// CreateUser persists a new user
func (s *Storage) CreateUser(user *domain.User) error {
	return s.db.Create(user).Error
}

// GetUser retrieves a user by ID
func (s *Storage) GetUser(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &user, err
}

// GetUserByEmail retrieves a user by email
func (s *Storage) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.db.First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// SaveUser creates or updates a user record
func (s *Storage) SaveUser(user *domain.User) error {
	return s.db.Save(user).Error
}

// UsersWithAvatars retrieves users that have a remote avatar URL set
func (s *Storage) UsersWithAvatars() ([]domain.User, error) {
	var users []domain.User
	err := s.db.Where("avatar_url <> ''").Find(&users).Error
	return users, err
}

// ======================================================================================
// Tip Operations
// ======================================================================================

// CreateTip persists a new tip
func (s *Storage) CreateTip(tip *domain.Tip) error {
	return s.db.Create(tip).Error
}

// GetTip retrieves a tip by ID
func (s *Storage) GetTip(id string) (*domain.Tip, error) {
	var tip domain.Tip
	err := s.db.First(&tip, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &tip, err
}

// TipsByTipper retrieves all tips created by a user, newest first
func (s *Storage) TipsByTipper(tipperID string) ([]domain.Tip, error) {
	var tips []domain.Tip
	err := s.db.Where("tipper_id = ?", tipperID).Order("created_at DESC").Find(&tips).Error
	return tips, err
}

// ClaimTip atomically assigns a tippee to an unclaimed tip. The conditional
// update makes the second of two racing claims lose: it matches zero rows.
func (s *Storage) ClaimTip(tipID, tippeeID string, now time.Time) error {
	res := s.db.Model(&domain.Tip{}).
		Where("id = ? AND status = ?", tipID, domain.TipStatusUnclaimed).
		Updates(map[string]interface{}{
			"tippee_id":  tippeeID,
			"status":     domain.TipStatusClaimed,
			"claimed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// MarkWithdrawn moves a claimed tip to the withdrawn state
func (s *Storage) MarkWithdrawn(tipID string) error {
	res := s.db.Model(&domain.Tip{}).
		Where("id = ? AND status = ?", tipID, domain.TipStatusClaimed).
		Update("status", domain.TipStatusWithdrawn)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTipNotClaimed
	}
	return nil
}

// RevertWithdrawn returns a withdrawn tip to the claimed state after a
// failed settlement, so the tippee can retry the withdrawal.
func (s *Storage) RevertWithdrawn(tipID string) error {
	return s.db.Model(&domain.Tip{}).
		Where("id = ? AND status = ?", tipID, domain.TipStatusWithdrawn).
		Update("status", domain.TipStatusClaimed).Error
}

// ReclaimExpired returns every unclaimed tip past its expiry to the tipper.
// Returns the number of tips reclaimed.
func (s *Storage) ReclaimExpired(now time.Time) (int64, error) {
	res := s.db.Model(&domain.Tip{}).
		Where("status = ? AND expires_at < ?", domain.TipStatusUnclaimed, now).
		Update("status", domain.TipStatusReclaimed)
	return res.RowsAffected, res.Error
}

// ======================================================================================
// Withdrawal Operations
// ======================================================================================

// CreateWithdrawal persists a withdrawal record
func (s *Storage) CreateWithdrawal(w *domain.Withdrawal) error {
	return s.db.Create(w).Error
}

// UpdateWithdrawalStatus moves a withdrawal to the given status
func (s *Storage) UpdateWithdrawalStatus(id, status string) error {
	return s.db.Model(&domain.Withdrawal{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// WithdrawalsByUser retrieves all withdrawals for a user, newest first
func (s *Storage) WithdrawalsByUser(userID string) ([]domain.Withdrawal, error) {
	var ws []domain.Withdrawal
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&ws).Error
	return ws, err
}
