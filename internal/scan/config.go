package scan

import (
	"fmt"
	"time"

	"card-scanner/internal/identify"
)

// Config holds the controller's timing and acceptance policy.
type Config struct {
	// Interval between ticks.
	Interval time.Duration
	// Cooldown suppresses a repeat of the last accepted identity.
	Cooldown time.Duration
	// AcceptThreshold is the minimum top-candidate similarity to accept.
	AcceptThreshold float64
	// AutoScan enables the continuous variant: a card held in frame is
	// reported once, and NoMatchResetTicks empty ticks forget the last
	// identity so the same card can be accepted again after it returns.
	AutoScan          bool
	NoMatchResetTicks int
}

// DefaultConfig returns the standard scanning policy.
func DefaultConfig() Config {
	return Config{
		Interval:          150 * time.Millisecond,
		Cooldown:          2000 * time.Millisecond,
		AcceptThreshold:   identify.AutoAcceptThreshold,
		NoMatchResetTicks: 2,
	}
}

// WithInterval returns a copy with a different tick interval.
func (c Config) WithInterval(d time.Duration) Config {
	c.Interval = d
	return c
}

// WithCooldown returns a copy with a different cooldown window.
func (c Config) WithCooldown(d time.Duration) Config {
	c.Cooldown = d
	return c
}

// WithAutoScan returns a copy with auto-scan enabled or disabled.
func (c Config) WithAutoScan(enabled bool) Config {
	c.AutoScan = enabled
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Interval)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative, got %v", c.Cooldown)
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("accept threshold %.2f outside [0,1]", c.AcceptThreshold)
	}
	if c.AutoScan && c.NoMatchResetTicks < 1 {
		return fmt.Errorf("no-match reset ticks must be at least 1, got %d", c.NoMatchResetTicks)
	}
	return nil
}
