package sessionguard

import (
	"errors"
	"time"

	"github.com/loocate/sessionguard/validity"
)

// Config defines a public type used by sessionguard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Validator ValidatorConfig
	Refresh   RefreshConfig
	Dedupe    DedupeConfig
	Timeouts  TimeoutConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
VALIDATOR CONFIG
====================================
*/

// ValidatorConfig defines a public type used by sessionguard APIs.
//
// ValidatorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidatorConfig struct {
	// ForceRefreshWindow marks sessions for immediate refresh when remaining
	// lifetime is at or below it (inclusive boundary).
	ForceRefreshWindow time.Duration
	// ExpiringSoonWindow classifies sessions as expiring_soon below it; the
	// validation coordinator also escalates to a refresh inside this band.
	ExpiringSoonWindow time.Duration
	// ExpiredGraceWindow separates just_expired from expired_past.
	ExpiredGraceWindow time.Duration
	// MaxPlausibleLifetime flags longer expirations as suspicious_future.
	MaxPlausibleLifetime time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by sessionguard APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// refresh loop makes at most MaxRetries+1 provider calls.
	MaxRetries uint64
	// BackoffBase is the first retry delay; each subsequent delay doubles.
	BackoffBase time.Duration
	// BackoffCap bounds the doubled delays.
	BackoffCap time.Duration
	// OuterRetryDelay is the fixed pause before the validation coordinator's
	// single outer refresh retry.
	OuterRetryDelay time.Duration
}

/*
====================================
DEDUPE CONFIG
====================================
*/

// DedupeConfig defines a public type used by sessionguard APIs.
//
// DedupeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DedupeConfig struct {
	// Window is the duplicate-rejection window.
	Window time.Duration
	// Retention is how long recorded submissions stay sweepable.
	Retention time.Duration
	// RedisPrefix namespaces keys when the Redis-backed store is selected.
	RedisPrefix string
}

/*
====================================
TIMEOUT BUDGETS
====================================
*/

// TimeoutConfig defines a public type used by sessionguard APIs.
//
// TimeoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TimeoutConfig struct {
	Validation  time.Duration
	Refresh     time.Duration
	Submission  time.Duration
	Eligibility time.Duration
	Principal   time.Duration
}

// AuditConfig defines a public type used by sessionguard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sessionguard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	th := validity.DefaultThresholds()
	return Config{
		Validator: ValidatorConfig{
			ForceRefreshWindow:   th.ForceRefreshWindow,
			ExpiringSoonWindow:   th.ExpiringSoonWindow,
			ExpiredGraceWindow:   th.ExpiredGraceWindow,
			MaxPlausibleLifetime: th.MaxPlausibleLifetime,
		},
		Refresh: RefreshConfig{
			MaxRetries:      2,
			BackoffBase:     time.Second,
			BackoffCap:      8 * time.Second,
			OuterRetryDelay: time.Second,
		},
		Dedupe: DedupeConfig{
			Window:      10 * time.Second,
			Retention:   30 * time.Minute,
			RedisPrefix: "sgd",
		},
		Timeouts: TimeoutConfig{
			Validation:  10 * time.Second,
			Refresh:     12 * time.Second,
			Submission:  15 * time.Second,
			Eligibility: 8 * time.Second,
			Principal:   5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

func (c *Config) thresholds() validity.Thresholds {
	return validity.Thresholds{
		ForceRefreshWindow:   c.Validator.ForceRefreshWindow,
		ExpiringSoonWindow:   c.Validator.ExpiringSoonWindow,
		ExpiredGraceWindow:   c.Validator.ExpiredGraceWindow,
		MaxPlausibleLifetime: c.Validator.MaxPlausibleLifetime,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Validator
	if c.Validator.ForceRefreshWindow <= 0 {
		return errors.New("Validator ForceRefreshWindow must be > 0")
	}
	if c.Validator.ExpiringSoonWindow < c.Validator.ForceRefreshWindow {
		return errors.New("Validator ExpiringSoonWindow must be >= ForceRefreshWindow")
	}
	if c.Validator.ExpiredGraceWindow <= 0 {
		return errors.New("Validator ExpiredGraceWindow must be > 0")
	}
	if c.Validator.MaxPlausibleLifetime <= c.Validator.ExpiringSoonWindow {
		return errors.New("Validator MaxPlausibleLifetime must exceed ExpiringSoonWindow")
	}

	// Refresh
	if c.Refresh.MaxRetries > 10 {
		return errors.New("Refresh MaxRetries must be <= 10")
	}
	if c.Refresh.BackoffBase <= 0 {
		return errors.New("Refresh BackoffBase must be > 0")
	}
	if c.Refresh.BackoffCap < c.Refresh.BackoffBase {
		return errors.New("Refresh BackoffCap must be >= BackoffBase")
	}
	if c.Refresh.OuterRetryDelay < 0 {
		return errors.New("Refresh OuterRetryDelay must be >= 0")
	}

	// Dedupe
	if c.Dedupe.Window <= 0 {
		return errors.New("Dedupe Window must be > 0")
	}
	if c.Dedupe.Retention < c.Dedupe.Window {
		return errors.New("Dedupe Retention must be >= Window")
	}

	// Timeouts
	if c.Timeouts.Validation <= 0 {
		return errors.New("Timeouts Validation must be > 0")
	}
	if c.Timeouts.Refresh <= 0 {
		return errors.New("Timeouts Refresh must be > 0")
	}
	if c.Timeouts.Submission <= 0 {
		return errors.New("Timeouts Submission must be > 0")
	}
	if c.Timeouts.Eligibility <= 0 {
		return errors.New("Timeouts Eligibility must be > 0")
	}
	if c.Timeouts.Principal <= 0 {
		return errors.New("Timeouts Principal must be > 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
