package httpapi

import (
	"fmt"
	"strings"
	"time"

	"chorekeep/internal/model"
)

const icsDateLayout = "20060102"

// BuildListCalendarICS renders every open dated task in a list as an
// iCalendar event. Instances of a recurring template carry the template's
// rule so subscribing calendars show the series, not just the next chore.
func BuildListCalendarICS(listName string, tasks, templates []model.Task, now time.Time) string {
	rules := map[string]string{}
	for _, tmpl := range templates {
		if tmpl.RRule != "" {
			rules[tmpl.UID] = tmpl.RRule
		}
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Chorekeep//List Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + escapeICSText(listName),
	}

	for _, t := range tasks {
		if t.Due == nil || t.Status == model.StatusCompleted {
			continue
		}
		due := t.Due.UTC()

		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escapeICSText(fmt.Sprintf("task-%s@chorekeep", t.UID)),
			"DTSTAMP:"+now.UTC().Format("20060102T150405Z"),
			"SUMMARY:"+escapeICSText(strings.TrimSpace(t.Summary)),
		)
		if t.IsAllDay {
			lines = append(lines,
				"DTSTART;VALUE=DATE:"+due.Format(icsDateLayout),
				"DTEND;VALUE=DATE:"+due.AddDate(0, 0, 1).Format(icsDateLayout),
			)
		} else {
			lines = append(lines,
				"DTSTART:"+due.Format("20060102T150405Z"),
				"DTEND:"+due.Add(time.Hour).Format("20060102T150405Z"),
			)
		}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			lines = append(lines, "DESCRIPTION:"+escapeICSText(desc))
		}
		if rule, ok := rules[t.ParentUID]; ok {
			lines = append(lines, "RRULE:"+rule)
		}
		lines = append(lines, "END:VEVENT")
	}

	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}
