package entities

import (
	"strings"
	"time"
)

// Provider is an expert that seekers can book. The availability rule
// (IsAvailable, AvailableDays, TimeSlots) is owned by the provider.
type Provider struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	IsAvailable   bool      `json:"is_available" db:"is_available"`
	AvailableDays []string  `json:"available_days" db:"available_days"`
	TimeSlots     []string  `json:"time_slots" db:"time_slots"`
	SessionFee    int64     `json:"session_fee" db:"session_fee"`
	Currency      string    `json:"currency" db:"currency"`
	Timezone      string    `json:"timezone" db:"timezone"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Rule returns the recurring weekly availability of the provider
func (p *Provider) Rule() AvailabilityRule {
	return AvailabilityRule{
		IsAvailable: p.IsAvailable,
		Weekdays:    p.AvailableDays,
		TimeLabels:  p.TimeSlots,
	}
}

// Location resolves the provider's timezone, falling back to def
func (p *Provider) Location(def *time.Location) *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	return def
}

// AvailabilityRule is a provider's recurring weekly rule
type AvailabilityRule struct {
	IsAvailable bool
	Weekdays    []string
	TimeLabels  []string
}

// AllowsWeekday reports whether the weekday is listed, case-insensitively
func (r AvailabilityRule) AllowsWeekday(day time.Weekday) bool {
	for _, d := range r.Weekdays {
		if strings.EqualFold(strings.TrimSpace(d), day.String()) {
			return true
		}
	}
	return false
}

// HasLabel reports whether the label is one of the rule's time ranges
func (r AvailabilityRule) HasLabel(label TimeLabel) bool {
	for _, raw := range r.TimeLabels {
		parsed, err := ParseTimeLabel(raw)
		if err == nil && parsed.Raw == label.Raw {
			return true
		}
	}
	return false
}

// Slot is a reservable (date, time label) pair
type Slot struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	TimeLabel string `json:"time_label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
