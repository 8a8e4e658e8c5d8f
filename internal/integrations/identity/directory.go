package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"jobboard-messaging/internal/domain"
)

// querier is the subset of *pgxpool.Pool the directory uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const profileQuery = `SELECT id, full_name, avatar_url FROM users WHERE id = $1`

// Directory reads user profiles from the job board's users table.
type Directory struct {
	db     querier
	logger *slog.Logger
}

func NewDirectory(db querier, logger *slog.Logger) (*Directory, error) {
	if db == nil {
		return nil, errors.New("identity: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{db: db, logger: logger.With("component", "identity")}, nil
}

// GetUserProfile returns nil, nil when no such user exists.
func (d *Directory) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	var (
		p      domain.UserProfile
		avatar *string
	)
	err := d.db.QueryRow(ctx, profileQuery, userID).Scan(&p.ID, &p.FullName, &avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		d.logger.Debug("profile not found", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity: GetUserProfile: %w", err)
	}
	if avatar != nil {
		p.Avatar = *avatar
	}
	return &p, nil
}

// StaticDirectory serves profiles from memory. The gateway uses it when no
// database is configured.
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
}

func NewStaticDirectory(profiles ...domain.UserProfile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[string]domain.UserProfile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *StaticDirectory) Put(p domain.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *StaticDirectory) GetUserProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
