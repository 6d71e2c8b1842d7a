package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Settings defaults.
const (
	DefaultDigestTime = "08:00"
	DefaultTimezone   = "UTC"
)

var (
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid digest settings")
	// ErrEmailRequired is returned when no notification address was given.
	ErrEmailRequired = fmt.Errorf("%w: email address is required", ErrInvalidSettings)
	// ErrTimeRequired is returned when no digest time was given.
	ErrTimeRequired = fmt.Errorf("%w: digest time is required", ErrInvalidSettings)
)

// Settings is the daily digest configuration a user saves.
type Settings struct {
	EmailAddress string
	DigestTime   string
	Timezone     string
	Enabled      bool
}

// DefaultSettings returns 08:00 UTC, enabled.
func DefaultSettings() Settings {
	return Settings{
		DigestTime: DefaultDigestTime,
		Timezone:   DefaultTimezone,
		Enabled:    true,
	}
}

// Preferences returns the preference part of s.
func (s Settings) Preferences() UserPreferences {
	return UserPreferences{
		Timezone:      s.Timezone,
		DigestTime:    s.DigestTime,
		DigestEnabled: s.Enabled,
	}
}

// Validate checks the address, the HH:MM time and the timezone.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.EmailAddress) == "" {
		return ErrEmailRequired
	}
	return s.ValidateSchedule()
}

// ValidateSchedule checks only the delivery time and timezone.
func (s Settings) ValidateSchedule() error {
	if strings.TrimSpace(s.DigestTime) == "" {
		return ErrTimeRequired
	}
	if _, err := time.Parse("15:04", s.DigestTime); err != nil {
		return fmt.Errorf("%w: digest time %q is not HH:MM", ErrInvalidSettings, s.DigestTime)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, s.Timezone)
	}
	return nil
}

// SaveSettings stores the preferences and then registers the notification
// address. The notification is not sent when the preference update fails.
func (c *Client) SaveSettings(ctx context.Context, token string, s Settings) (*NotificationResponse, error) {
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.UpdatePreferences(ctx, token, s.Preferences()); err != nil {
		return nil, err
	}

	return c.SendEmailNotification(ctx, token, NotificationRequest{
		EmailAddress: strings.TrimSpace(s.EmailAddress),
	})
}
