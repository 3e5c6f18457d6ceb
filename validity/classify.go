package validity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loocate/sessionguard/session"
)

// DetailedStatus defines a public type used by sessionguard APIs.
//
// DetailedStatus is the fine-grained session-validity classification beyond a
// boolean, driving both refresh policy and user messaging.
type DetailedStatus string

const (
	// StatusNoSession is an exported constant used by the session guard.
	StatusNoSession DetailedStatus = "no_session"
	// StatusValid is an exported constant used by the session guard.
	StatusValid DetailedStatus = "valid"
	// StatusExpiringSoon is an exported constant used by the session guard.
	StatusExpiringSoon DetailedStatus = "expiring_soon"
	// StatusJustExpired is an exported constant used by the session guard.
	StatusJustExpired DetailedStatus = "just_expired"
	// StatusExpiredPast is an exported constant used by the session guard.
	StatusExpiredPast DetailedStatus = "expired_past"
	// StatusSuspiciousFuture is an exported constant used by the session guard.
	StatusSuspiciousFuture DetailedStatus = "suspicious_future"
	// StatusInvalidDate is an exported constant used by the session guard.
	StatusInvalidDate DetailedStatus = "invalid_date"
	// StatusMissingExpiration is an exported constant used by the session guard.
	StatusMissingExpiration DetailedStatus = "missing_expiration"
	// StatusCalculationError is an exported constant used by the session guard.
	StatusCalculationError DetailedStatus = "calculation_error"
	// StatusNetworkError is an exported constant used by the session guard.
	StatusNetworkError DetailedStatus = "network_error"
)

// Status defines a public type used by sessionguard APIs.
//
// Status is the result of classifying one session at one instant. ExpiresIn
// is meaningful only when ExpiryKnown is true.
type Status struct {
	Valid             bool
	ExpiresIn         time.Duration
	ExpiryKnown       bool
	NeedsForceRefresh bool
	Detail            DetailedStatus
}

// Thresholds defines a public type used by sessionguard APIs.
//
// Thresholds instances are intended to be configured during initialization
// and then treated as immutable.
type Thresholds struct {
	// ForceRefreshWindow marks sessions for immediate refresh when the
	// remaining lifetime is at or below it (inclusive).
	ForceRefreshWindow time.Duration
	// ExpiringSoonWindow classifies sessions as expiring_soon below it.
	ExpiringSoonWindow time.Duration
	// ExpiredGraceWindow separates just_expired from expired_past: a session
	// expired for longer than this is expired_past.
	ExpiredGraceWindow time.Duration
	// MaxPlausibleLifetime flags expirations at or beyond it as
	// suspicious_future.
	MaxPlausibleLifetime time.Duration
}

// DefaultThresholds returns the stock policy: force refresh at 5 minutes,
// expiring_soon below 10 minutes, 5 minute expired grace, 90 day plausibility
// ceiling.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ForceRefreshWindow:   5 * time.Minute,
		ExpiringSoonWindow:   10 * time.Minute,
		ExpiredGraceWindow:   5 * time.Minute,
		MaxPlausibleLifetime: 90 * 24 * time.Hour,
	}
}

// Numeric expirations below this are unix seconds, at or above it epoch
// milliseconds. 20e9 seconds is year 2603; 20e9 milliseconds is 1970.
const millisCutoff = 20_000_000_000

// Classify evaluates sess against [DefaultThresholds] at instant now.
func Classify(sess *session.Session, now time.Time) Status {
	return ClassifyWithin(DefaultThresholds(), sess, now)
}

// ClassifyWithin evaluates sess against th at instant now.
//
// ClassifyWithin never returns an error: inputs it cannot reason about map to
// invalid_date, missing_expiration, or calculation_error, all of which demand
// a refresh.
func ClassifyWithin(th Thresholds, sess *session.Session, now time.Time) (st Status) {
	// Fail toward refresh: a panic during normalization must not take the
	// caller down or leave the session trusted.
	defer func() {
		if r := recover(); r != nil {
			st = Status{Detail: StatusCalculationError, NeedsForceRefresh: true}
		}
	}()

	if sess == nil {
		return Status{Detail: StatusNoSession}
	}

	expiresAt, state := normalizeExpiry(sess)
	switch state {
	case expiryAbsent:
		return Status{Detail: StatusMissingExpiration, NeedsForceRefresh: true}
	case expiryInvalid:
		return Status{Detail: StatusInvalidDate, NeedsForceRefresh: true}
	case expiryBroken:
		return Status{Detail: StatusCalculationError, NeedsForceRefresh: true}
	}

	remaining := expiresAt.Sub(now).Truncate(time.Second)

	switch {
	case remaining <= -th.ExpiredGraceWindow:
		return Status{
			ExpiresIn:         remaining,
			ExpiryKnown:       true,
			Detail:            StatusExpiredPast,
			NeedsForceRefresh: true,
		}
	case remaining < 0:
		return Status{
			ExpiresIn:         remaining,
			ExpiryKnown:       true,
			Detail:            StatusJustExpired,
			NeedsForceRefresh: true,
		}
	case remaining >= th.MaxPlausibleLifetime:
		// Clock skew or a corrupted expiration; the session itself still
		// works, so surface it without demanding a refresh.
		return Status{
			Valid:       true,
			ExpiresIn:   remaining,
			ExpiryKnown: true,
			Detail:      StatusSuspiciousFuture,
		}
	case remaining < th.ExpiringSoonWindow:
		return Status{
			Valid:             true,
			ExpiresIn:         remaining,
			ExpiryKnown:       true,
			Detail:            StatusExpiringSoon,
			NeedsForceRefresh: remaining <= th.ForceRefreshWindow,
		}
	default:
		return Status{
			Valid:       true,
			ExpiresIn:   remaining,
			ExpiryKnown: true,
			Detail:      StatusValid,
		}
	}
}

type expiryState int

const (
	expiryOK expiryState = iota
	expiryAbsent
	expiryInvalid
	expiryBroken
)

func normalizeExpiry(sess *session.Session) (time.Time, expiryState) {
	raw := sess.ExpiresAt
	if raw == nil || raw == "" {
		// The identity service sometimes omits the expiration field; the
		// access token's exp claim is the next best source.
		if exp, ok := expiryFromToken(sess.AccessToken); ok {
			return exp, expiryOK
		}
		return time.Time{}, expiryAbsent
	}

	switch v := raw.(type) {
	case time.Time:
		return v, expiryOK
	case int:
		return fromEpoch(float64(v))
	case int32:
		return fromEpoch(float64(v))
	case int64:
		return fromEpoch(float64(v))
	case uint64:
		return fromEpoch(float64(v))
	case float32:
		return fromEpoch(float64(v))
	case float64:
		return fromEpoch(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, expiryInvalid
		}
		return fromEpoch(f)
	case string:
		return fromString(v)
	default:
		return time.Time{}, expiryInvalid
	}
}

func fromEpoch(v float64) (time.Time, expiryState) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, expiryBroken
	}
	if v < millisCutoff {
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*float64(time.Second))), expiryOK
	}
	return time.UnixMilli(int64(v)), expiryOK
}

// Date layouts seen in the wild from the hosted store and older clients.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func fromString(s string) (time.Time, expiryState) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, expiryAbsent
	}
	// Numeric strings re-dispatch through the epoch path.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, expiryOK
		}
	}
	return time.Time{}, expiryInvalid
}

func expiryFromToken(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
