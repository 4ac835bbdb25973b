package services

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/expertbooking/backend/internal/domain/entities"
)

// DateWindow is a run of consecutive provider-local calendar days
type DateWindow struct {
	// Start carries the first date; only its year, month and day are used
	Start time.Time
	Days  int
	// Now, when set, hides slots that already started
	Now time.Time
}

// SingleDay is a window covering one date
func SingleDay(date time.Time, now time.Time) DateWindow {
	return DateWindow{Start: date, Days: 1, Now: now}
}

// RollingWindow is a window of days starting today
func RollingWindow(today time.Time, days int) DateWindow {
	return DateWindow{Start: today, Days: days, Now: today}
}

// CalculateAvailability enumerates the free slots of a provider's weekly rule
// over a window. Dates are built at local midnight in loc, so the weekday is
// the provider's own calendar weekday. Labels held by an active appointment
// on the same date are removed. The result is ordered by date then start.
func CalculateAvailability(rule entities.AvailabilityRule, booked []*entities.Appointment, window DateWindow, loc *time.Location) []entities.Slot {
	slots := []entities.Slot{}
	if !rule.IsAvailable || window.Days <= 0 {
		return slots
	}
	if loc == nil {
		loc = time.UTC
	}

	labels := parseLabels(rule.TimeLabels)
	if len(labels) == 0 {
		return slots
	}

	taken := make(map[string]struct{}, len(booked))
	for _, appointment := range booked {
		if appointment == nil || !appointment.Status.IsActive() {
			continue
		}
		taken[appointment.Date+"|"+appointment.StartTime] = struct{}{}
	}

	var now time.Time
	if !window.Now.IsZero() {
		now = window.Now.In(loc)
	}

	y, m, d := window.Start.Date()
	for i := 0; i < window.Days; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if !rule.AllowsWeekday(day.Weekday()) {
			continue
		}

		date := day.Format(time.DateOnly)
		for _, label := range labels {
			if _, ok := taken[date+"|"+label.Start]; ok {
				continue
			}
			if !now.IsZero() && !label.StartOn(day).After(now) {
				continue
			}
			slots = append(slots, entities.Slot{
				Date:      date,
				Weekday:   day.Weekday().String(),
				TimeLabel: label.Raw,
				StartTime: label.Start,
				EndTime:   label.End,
			})
		}
	}

	return slots
}

// parseLabels parses, de-duplicates and orders labels by start time.
// Malformed labels are skipped.
func parseLabels(raw []string) []entities.TimeLabel {
	seen := make(map[string]struct{}, len(raw))
	labels := make([]entities.TimeLabel, 0, len(raw))
	for _, r := range raw {
		label, err := entities.ParseTimeLabel(r)
		if err != nil {
			log.Warn().Err(err).Str("label", r).Msg("skipping malformed availability label")
			continue
		}
		if _, dup := seen[label.Raw]; dup {
			continue
		}
		seen[label.Raw] = struct{}{}
		labels = append(labels, label)
	}

	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Start == labels[j].Start {
			return labels[i].End < labels[j].End
		}
		return labels[i].Start < labels[j].Start
	})
	return labels
}
