package event

import (
	"time"

	"github.com/teambition/rrule-go"
)

const (
	msgBadTimeFormat  = "start_time and end_time must be valid ISO format datetime strings"
	msgStartBeforeEnd = "start_time must be before end_time"
	msgRecurrence     = "recurrence_pattern required if is_recurring is true"
	msgBadRRule       = "recurrence_pattern must be a valid RRULE"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTime accepts ISO-8601 timestamps with or without zone and seconds.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func validRRule(pattern string) bool {
	_, err := rrule.StrToRRule(pattern)
	return err == nil
}

// CreateRequest carries caller-supplied fields for a new event. OwnerID
// is accepted only so impersonation attempts can be rejected.
type CreateRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Location          string `json:"location"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurrencePattern string `json:"recurrence_pattern"`
	OwnerID           *int64 `json:"owner_id"`
}

// Validate checks required fields and returns the parsed interval along
// with human-readable messages for every failed check.
func (r *CreateRequest) Validate() (start, end time.Time, errs []string) {
	if r.Title == "" {
		errs = append(errs, "Missing title")
	}
	if r.StartTime == "" {
		errs = append(errs, "Missing start_time")
	}
	if r.EndTime == "" {
		errs = append(errs, "Missing end_time")
	}

	if r.StartTime != "" && r.EndTime != "" {
		var serr, eerr error
		start, serr = ParseTime(r.StartTime)
		end, eerr = ParseTime(r.EndTime)
		if serr != nil || eerr != nil {
			errs = append(errs, msgBadTimeFormat)
		} else if !start.Before(end) {
			errs = append(errs, msgStartBeforeEnd)
		}
	}

	if r.IsRecurring {
		if r.RecurrencePattern == "" {
			errs = append(errs, msgRecurrence)
		} else if !validRRule(r.RecurrencePattern) {
			errs = append(errs, msgBadRRule)
		}
	}
	return start, end, errs
}

// UpdateRequest carries a partial update; nil means "not supplied".
type UpdateRequest struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	StartTime         *string `json:"start_time"`
	EndTime           *string `json:"end_time"`
	Location          *string `json:"location"`
	IsRecurring       *bool   `json:"is_recurring"`
	RecurrencePattern *string `json:"recurrence_pattern"`
}

// Validate checks the supplied fields against the current event state, so
// the post-mutation invariants (start < end, recurrence rule) hold even
// when only one side of a pair is supplied.
func (r *UpdateRequest) Validate(current *Event) []string {
	var errs []string

	start, end := current.StartTime, current.EndTime
	badTime := false
	if r.StartTime != nil {
		t, err := ParseTime(*r.StartTime)
		if err != nil {
			badTime = true
		} else {
			start = t
		}
	}
	if r.EndTime != nil {
		t, err := ParseTime(*r.EndTime)
		if err != nil {
			badTime = true
		} else {
			end = t
		}
	}
	if badTime {
		errs = append(errs, msgBadTimeFormat)
	} else if !start.Before(end) {
		errs = append(errs, msgStartBeforeEnd)
	}

	recurring := current.IsRecurring
	if r.IsRecurring != nil {
		recurring = *r.IsRecurring
	}
	pattern := current.RecurrencePattern
	if r.RecurrencePattern != nil {
		pattern = *r.RecurrencePattern
	}
	if recurring {
		if pattern == "" {
			errs = append(errs, msgRecurrence)
		} else if !validRRule(pattern) {
			errs = append(errs, msgBadRRule)
		}
	}
	return errs
}

// Window returns the interval the update would leave in place: supplied
// values where present and parseable, current values otherwise. Used for
// the conflict check, which runs before validation.
func (r *UpdateRequest) Window(current *Event) (start, end time.Time) {
	start, end = current.StartTime, current.EndTime
	if r.StartTime != nil {
		if t, err := ParseTime(*r.StartTime); err == nil {
			start = t
		}
	}
	if r.EndTime != nil {
		if t, err := ParseTime(*r.EndTime); err == nil {
			end = t
		}
	}
	return start, end
}
