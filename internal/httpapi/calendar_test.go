package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chorekeep/internal/model"
)

func TestCalendar_ExportsOpenDatedTasks(t *testing.T) {
	h, s, _ := newHandlerForTests(t)

	due := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)

	template := model.NewTask("Water plants")
	template.IsTemplate = true
	template.RRule = "FREQ=WEEKLY;INTERVAL=1"
	if err := s.AddTask("chores", template); err != nil {
		t.Fatalf("add template: %v", err)
	}

	instance := model.NewTask("Water plants")
	instance.ParentUID = template.UID
	instance.Due = &due
	instance.IsAllDay = true
	if err := s.AddTask("chores", instance); err != nil {
		t.Fatalf("add instance: %v", err)
	}

	done := model.NewTask("Already done")
	done.Due = &due
	done.Status = model.StatusCompleted
	if err := s.AddTask("chores", done); err != nil {
		t.Fatalf("add completed task: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ListsSub(rec, httptest.NewRequest(http.MethodGet, "/api/lists/chores/calendar.ics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"X-WR-CALNAME:Chores",
		"SUMMARY:Water plants",
		"DTSTART;VALUE=DATE:20260212",
		"RRULE:FREQ=WEEKLY;INTERVAL=1",
		"END:VCALENDAR",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("calendar missing %q body=%s", want, body)
		}
	}
	if strings.Contains(body, "Already done") {
		t.Fatalf("completed task leaked into calendar: %s", body)
	}
}
