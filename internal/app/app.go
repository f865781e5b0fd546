package app

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"findit/pkg/domain"
	"findit/pkg/notify"
	"findit/pkg/storage"
	"findit/pkg/store"
)

const (
	defaultLostPage  = 1
	defaultLostLimit = 10
	maxLostLimit     = 100
)

// Config holds the collaborators of the core application.
type Config struct {
	Store    store.Store
	Notifier notify.Notifier
	Images   storage.ImageStore
	// Now is used for created_at/claimed_at; defaults to time.Now.
	Now func() time.Time
}

// App implements the concern and claim lifecycles on top of an injected
// store, notifier and image store.
type App struct {
	store    store.Store
	notifier notify.Notifier
	images   storage.ImageStore
	now      func() time.Time
}

// New constructs the application. A missing notifier falls back to logging.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Images == nil {
		return nil, errors.New("image store is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: slog.Default()}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:    cfg.Store,
		notifier: notifier,
		images:   cfg.Images,
		now:      func() time.Time { return now().UTC() },
	}, nil
}

// parseID parses a positive numeric path or body id.
func parseID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid(field + " required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid " + field)
	}
	return id, nil
}

// parseDecision accepts only the two terminal statuses.
func parseDecision(raw string) (domain.Status, error) {
	switch s := domain.Status(strings.TrimSpace(raw)); s {
	case domain.StatusApproved, domain.StatusRejected:
		return s, nil
	}
	return "", ErrInvalidDecision
}

func parseStatus(raw string) (domain.Status, error) {
	switch s := domain.Status(strings.TrimSpace(raw)); s {
	case domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// parseDate accepts a calendar date, or an RFC 3339 timestamp as echoed
// back by clients that received a JSON date.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(domain.DateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, ErrInvalidDate
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
