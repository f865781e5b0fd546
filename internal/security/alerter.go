package security

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"findit/internal/ratelimit"
)

// Security event names.
const (
	EventAdminAuthorize = "admin.authorize"
	EventSignIn         = "auth.signin"
	EventSignUp         = "auth.signup"
	EventClaimSubmit    = "claim.submit"

	OutcomeFail        = "fail"
	OutcomeRateLimited = "rate_limited"
)

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter counts security events per client IP and reports when a
// threshold is crossed within its window.
type AuditAlerter struct {
	counter *ratelimit.WindowCounter
}

// NewAuditAlerter returns nil when client is nil; a nil alerter observes
// nothing.
func NewAuditAlerter(client *redis.Client, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "findit:alerts"
	}
	counter, err := ratelimit.NewWindowCounter(client, prefix)
	if err != nil {
		return nil
	}
	return &AuditAlerter{counter: counter}
}

// Observe records a security event and returns whether the alert threshold
// is reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil {
		return result, nil
	}
	threshold, window, ok := alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	key := ratelimit.SanitizeSegment(event) + ":" + ratelimit.SanitizeSegment(outcome) + ":" + ratelimit.SanitizeSegment(ip)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, _, err := a.counter.Incr(ctx, key, window)
	if err != nil {
		return result, err
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	result.Triggered = count >= threshold
	return result, nil
}

func alertRule(event, outcome string) (threshold int64, window time.Duration, ok bool) {
	event = strings.TrimSpace(event)
	outcome = strings.TrimSpace(outcome)
	if outcome == OutcomeRateLimited {
		return 20, time.Minute, true
	}
	if outcome != OutcomeFail {
		return 0, 0, false
	}
	switch event {
	case EventSignIn, EventSignUp:
		return 10, 5 * time.Minute, true
	case EventAdminAuthorize:
		return 25, 5 * time.Minute, true
	default:
		return 0, 0, false
	}
}
