// Package recur computes the next occurrence of a recurring task template
// from its RFC 5545 recurrence rule.
package recur

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"chorekeep/internal/model"
)

// ValidateRule reports whether the rule string parses as an RFC 5545
// recurrence rule. The "RRULE:" prefix is accepted and ignored.
func ValidateRule(rule string) error {
	if strings.TrimSpace(rule) == "" {
		return fmt.Errorf("recur: empty rule")
	}
	if _, err := rrule.StrToROption(strings.TrimPrefix(rule, "RRULE:")); err != nil {
		return fmt.Errorf("recur: invalid rule %q: %w", rule, err)
	}
	return nil
}

// NextDue computes the due timestamp of the occurrence after the one just
// completed. instanceDue is the completed instance's due timestamp.
//
// Overdue completions anchor the expansion at the start of today (all-day
// rules) or at now (timed rules) so the user catches up instead of working
// through a backlog of missed occurrences. On-time completions anchor at the
// instance's own due timestamp so the schedule is maintained.
//
// Returns nil when the template is dateless, the rule cannot be parsed, or
// the rule produces no further occurrence. Callers treat nil as "no further
// instances", never as an abort.
func NextDue(template model.Task, instanceDue *time.Time, now time.Time) *time.Time {
	if template.IsDatelessRecurring {
		return nil
	}
	if template.RRule == "" || instanceDue == nil {
		return nil
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(template.RRule, "RRULE:"))
	if err != nil {
		return nil
	}
	opt.Dtstart = instanceDue.UTC()
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil
	}

	anchor := instanceDue.UTC()
	if now.After(*instanceDue) {
		// Late completion: catch up from today rather than the stale due date.
		if template.IsAllDay {
			y, m, d := now.UTC().Date()
			anchor = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		} else {
			anchor = now.UTC()
		}
	}

	next := rule.After(anchor, false)
	if next.IsZero() {
		return nil
	}
	if template.IsAllDay {
		// Normalize to midnight so library rounding cannot drift the date.
		y, m, d := next.Date()
		next = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return &next
}
