// Package httpapi exposes lists, tasks, sections, sync, and points over a
// JSON API. Handlers stay thin; all semantics live in the store, completion,
// and sync packages.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"chorekeep/internal/completion"
	"chorekeep/internal/model"
	"chorekeep/internal/points"
	"chorekeep/internal/recur"
	"chorekeep/internal/store"
	"chorekeep/internal/sync"
)

type Handler struct {
	store       *store.Store
	builder     *completion.Builder
	applier     *completion.Applier
	coordinator *sync.Coordinator
	ledger      points.Ledger
	logger      *log.Logger
}

func NewHandler(s *store.Store, builder *completion.Builder, applier *completion.Applier, coordinator *sync.Coordinator, ledger points.Ledger, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:       s,
		builder:     builder,
		applier:     applier,
		coordinator: coordinator,
		ledger:      ledger,
		logger:      logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// ListsRoot handles /api/lists.
func (h *Handler) ListsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, 200, h.store.Lists())

	case http.MethodPost:
		var req struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, 400, "invalid json body")
			return
		}
		if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
			writeErr(w, 400, "id and name are required")
			return
		}
		lc, err := h.store.CreateList(req.ID, req.Name)
		if err != nil {
			writeErr(w, 409, err.Error())
			return
		}
		writeJSON(w, 201, lc)

	default:
		writeErr(w, 405, "method not allowed")
	}
}

// ListsSub handles everything under /api/lists/.
func (h *Handler) ListsSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/lists/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, 404, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	listID := parts[0]

	// /api/lists/{id}
	if len(parts) == 1 {
		h.handleList(w, r, listID)
		return
	}

	switch parts[1] {
	case "tasks":
		switch len(parts) {
		case 2:
			h.handleTasks(w, r, listID)
		case 3:
			h.handleTask(w, r, listID, parts[2])
		case 4:
			h.handleTaskAction(w, r, listID, parts[2], parts[3])
		default:
			writeErr(w, 404, "not found")
		}
	case "templates":
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeErr(w, 404, "not found")
			return
		}
		writeJSON(w, 200, h.store.TemplatesForList(listID))
	case "sections":
		if len(parts) != 2 {
			writeErr(w, 404, "not found")
			return
		}
		h.handleSections(w, r, listID)
	case "calendar.ics":
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeErr(w, 404, "not found")
			return
		}
		lc, err := h.store.GetList(listID)
		if err != nil {
			writeErr(w, 404, "list not found")
			return
		}
		body := BuildListCalendarICS(lc.Name, h.store.TasksForList(listID), h.store.TemplatesForList(listID), time.Now())
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	case "archive":
		if len(parts) != 2 || r.Method != http.MethodGet {
			writeErr(w, 404, "not found")
			return
		}
		archived, err := h.store.ArchivedTasks(listID)
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, archived)
	default:
		writeErr(w, 404, "not found")
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, listID string) {
	switch r.Method {
	case http.MethodGet:
		lc, err := h.store.GetList(listID)
		if errors.Is(err, store.ErrListNotFound) {
			writeErr(w, 404, "list not found")
			return
		}
		writeJSON(w, 200, lc)

	case http.MethodPatch:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeErr(w, 400, "name is required")
			return
		}
		if err := h.store.RenameList(listID, req.Name); err != nil {
			writeErr(w, 404, err.Error())
			return
		}
		lc, _ := h.store.GetList(listID)
		writeJSON(w, 200, lc)

	case http.MethodDelete:
		if err := h.store.DeleteList(listID); err != nil {
			writeErr(w, 404, err.Error())
			return
		}
		writeJSON(w, 200, map[string]any{"deleted": listID})

	default:
		writeErr(w, 405, "method not allowed")
	}
}

type taskRequest struct {
	Summary             string     `json:"summary"`
	Description         string     `json:"description"`
	Due                 *time.Time `json:"due"`
	Tags                []string   `json:"tags"`
	RRule               string     `json:"rrule"`
	PointsValue         int        `json:"points_value"`
	StreakBonusPoints   int        `json:"streak_bonus_points"`
	StreakBonusInterval int        `json:"streak_bonus_interval"`
	IsAllDay            bool       `json:"is_all_day"`
	SectionID           string     `json:"section_id"`
	DatelessRecurring   bool       `json:"dateless_recurring"`
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request, listID string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, 200, h.store.TasksForList(listID))

	case http.MethodPost:
		var req taskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, 400, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Summary) == "" {
			writeErr(w, 400, "summary is required")
			return
		}
		if req.RRule != "" {
			if err := recur.ValidateRule(req.RRule); err != nil {
				writeErr(w, 400, err.Error())
				return
			}
		}
		created, err := h.createTask(listID, req)
		if err != nil {
			h.writeStoreErr(w, err)
			return
		}
		writeJSON(w, 201, created)

	default:
		writeErr(w, 405, "method not allowed")
	}
}

// createTask builds either a plain task or, when a recurrence rule is given,
// a template plus its first instance.
func (h *Handler) createTask(listID string, req taskRequest) ([]model.Task, error) {
	if req.RRule == "" && !req.DatelessRecurring {
		task := model.NewTask(req.Summary)
		task.Description = req.Description
		task.Due = req.Due
		task.Tags = req.Tags
		task.PointsValue = req.PointsValue
		task.IsAllDay = req.IsAllDay
		task.SectionID = req.SectionID
		if err := h.store.AddTask(listID, task); err != nil {
			return nil, err
		}
		return []model.Task{task}, nil
	}

	template := model.NewTask(req.Summary)
	template.Description = req.Description
	template.Tags = req.Tags
	template.RRule = req.RRule
	template.PointsValue = req.PointsValue
	template.StreakBonusPoints = req.StreakBonusPoints
	template.StreakBonusInterval = req.StreakBonusInterval
	template.IsTemplate = true
	template.IsAllDay = req.IsAllDay
	template.SectionID = req.SectionID
	template.IsDatelessRecurring = req.DatelessRecurring && req.RRule == ""
	if err := h.store.AddTask(listID, template); err != nil {
		return nil, err
	}

	instance := model.NewTask(req.Summary)
	instance.Description = req.Description
	instance.Tags = append([]string(nil), req.Tags...)
	instance.Due = req.Due
	instance.PointsValue = req.PointsValue
	instance.ParentUID = template.UID
	instance.IsAllDay = req.IsAllDay
	instance.SectionID = req.SectionID
	if err := h.store.AddTask(listID, instance); err != nil {
		return nil, err
	}

	if h.coordinator != nil {
		go h.coordinator.PushTask(context.Background(), listID, template)
	}
	return []model.Task{template, instance}, nil
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request, listID, uid string) {
	switch r.Method {
	case http.MethodGet:
		task, err := h.store.GetTask(listID, uid)
		if err != nil {
			h.writeStoreErr(w, err)
			return
		}
		writeJSON(w, 200, task)

	case http.MethodPatch:
		h.patchTask(w, r, listID, uid)

	case http.MethodDelete:
		task, err := h.store.GetTask(listID, uid)
		if err != nil {
			// Maybe a template uid; recurring delete resolves both.
			template, terr := h.store.GetTemplate(listID, uid)
			if terr != nil {
				h.writeStoreErr(w, err)
				return
			}
			deleted, derr := h.store.DeleteRecurringTaskAndInstances(listID, uid)
			if derr != nil {
				h.writeStoreErr(w, derr)
				return
			}
			h.notifyDeleted(listID, template)
			writeJSON(w, 200, map[string]any{"deleted": deleted})
			return
		}
		if task.IsRecurringInstance() {
			template, terr := h.store.GetTemplate(listID, task.ParentUID)
			deleted, err := h.store.DeleteRecurringTaskAndInstances(listID, uid)
			if err != nil {
				h.writeStoreErr(w, err)
				return
			}
			// The template owns the remote copy; an orphaned instance owns
			// its own.
			if terr == nil {
				h.notifyDeleted(listID, template)
			} else {
				h.notifyDeleted(listID, task)
			}
			writeJSON(w, 200, map[string]any{"deleted": deleted})
			return
		}
		if err := h.store.DeleteTask(listID, uid); err != nil {
			h.writeStoreErr(w, err)
			return
		}
		h.notifyDeleted(listID, task)
		writeJSON(w, 200, map[string]any{"deleted": []string{uid}})

	default:
		writeErr(w, 405, "method not allowed")
	}
}

// taskPatch updates only the fields the request actually carries; absent
// fields keep their stored values.
type taskPatch struct {
	Summary             *string    `json:"summary"`
	Description         *string    `json:"description"`
	Due                 *time.Time `json:"due"`
	Tags                []string   `json:"tags"`
	RRule               *string    `json:"rrule"`
	PointsValue         *int       `json:"points_value"`
	StreakBonusPoints   *int       `json:"streak_bonus_points"`
	StreakBonusInterval *int       `json:"streak_bonus_interval"`
	IsAllDay            *bool      `json:"is_all_day"`
	SectionID           *string    `json:"section_id"`
}

func (p taskPatch) touchesTemplate() bool {
	return p.RRule != nil || p.StreakBonusPoints != nil || p.StreakBonusInterval != nil ||
		p.Summary != nil || p.Description != nil || p.PointsValue != nil
}

func (h *Handler) patchTask(w http.ResponseWriter, r *http.Request, listID, uid string) {
	task, err := h.store.GetTask(listID, uid)
	if err != nil {
		h.writeStoreErr(w, err)
		return
	}
	var req taskPatch
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, 400, "invalid json body")
		return
	}
	if req.RRule != nil && *req.RRule != "" {
		if err := recur.ValidateRule(*req.RRule); err != nil {
			writeErr(w, 400, err.Error())
			return
		}
	}

	if req.Summary != nil && strings.TrimSpace(*req.Summary) != "" {
		task.Summary = *req.Summary
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Due != nil {
		task.Due = req.Due
	}
	if req.Tags != nil {
		task.Tags = req.Tags
	}
	if req.PointsValue != nil {
		task.PointsValue = *req.PointsValue
	}
	if req.IsAllDay != nil {
		task.IsAllDay = *req.IsAllDay
	}
	if req.SectionID != nil {
		task.SectionID = *req.SectionID
	}
	task.Touch()

	var toPush model.Task
	pushTemplate := false

	switch {
	case task.IsRecurringInstance() && req.touchesTemplate():
		// Template-level fields patched through an instance land on the
		// template so future occurrences inherit them.
		tmpl, terr := h.store.GetTemplate(listID, task.ParentUID)
		if terr == nil {
			if req.Summary != nil && strings.TrimSpace(*req.Summary) != "" {
				tmpl.Summary = *req.Summary
			}
			if req.Description != nil {
				tmpl.Description = *req.Description
			}
			if req.PointsValue != nil {
				tmpl.PointsValue = *req.PointsValue
			}
			if req.RRule != nil && *req.RRule != "" {
				tmpl.RRule = *req.RRule
			}
			if req.StreakBonusPoints != nil {
				tmpl.StreakBonusPoints = *req.StreakBonusPoints
			}
			if req.StreakBonusInterval != nil {
				tmpl.StreakBonusInterval = *req.StreakBonusInterval
			}
			tmpl.Touch()
			if err := h.store.UpdateTask(listID, tmpl); err != nil {
				h.writeStoreErr(w, err)
				return
			}
			toPush, pushTemplate = tmpl, true
		} else {
			h.logger.Printf("httpapi: template %s missing for instance patch %s", task.ParentUID, uid)
		}

	case !task.IsRecurringInstance() && req.RRule != nil && *req.RRule != "":
		// Adding a rule to a plain task converts it: a new template takes
		// over and the task becomes its first instance.
		tmpl := model.NewTask(task.Summary)
		tmpl.Description = task.Description
		tmpl.Tags = append([]string(nil), task.Tags...)
		tmpl.RRule = *req.RRule
		tmpl.PointsValue = task.PointsValue
		if req.StreakBonusPoints != nil {
			tmpl.StreakBonusPoints = *req.StreakBonusPoints
		}
		if req.StreakBonusInterval != nil {
			tmpl.StreakBonusInterval = *req.StreakBonusInterval
		}
		tmpl.IsTemplate = true
		tmpl.IsAllDay = task.IsAllDay
		tmpl.SectionID = task.SectionID
		if err := h.store.AddTask(listID, tmpl); err != nil {
			h.writeStoreErr(w, err)
			return
		}
		task.ParentUID = tmpl.UID
		task.OccurrenceIndex = 0
		toPush, pushTemplate = tmpl, true
	}

	if err := h.store.UpdateTask(listID, task); err != nil {
		h.writeStoreErr(w, err)
		return
	}
	if !pushTemplate {
		toPush = task
	}
	if h.coordinator != nil {
		go h.coordinator.PushTask(context.Background(), listID, toPush)
	}
	writeJSON(w, 200, task)
}

func (h *Handler) notifyDeleted(listID string, task model.Task) {
	if h.coordinator == nil {
		return
	}
	go h.coordinator.DeleteTask(context.Background(), listID, task)
}

func (h *Handler) handleTaskAction(w http.ResponseWriter, r *http.Request, listID, uid, action string) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	task, err := h.store.GetTask(listID, uid)
	if err != nil {
		h.writeStoreErr(w, err)
		return
	}

	switch action {
	case "complete":
		if task.Status == model.StatusCompleted {
			writeErr(w, 409, "task already completed")
			return
		}
		ctx := h.builder.Build(listID, task, time.Now().UTC())
		if err := h.applier.Apply(ctx); err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, map[string]any{
			"uid":          task.UID,
			"on_time":      ctx.OnTime,
			"points":       ctx.TotalPoints,
			"streak_after": ctx.StreakAfter,
			"next_created": ctx.ShouldCreateNext,
			"next_due":     ctx.NextDue,
		})

	case "uncomplete":
		if task.Status != model.StatusCompleted {
			writeErr(w, 409, "task is not completed")
			return
		}
		if err := h.applier.Uncomplete(listID, task, time.Now().UTC()); err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		updated, _ := h.store.GetTask(listID, uid)
		writeJSON(w, 200, updated)

	default:
		writeErr(w, 404, "not found")
	}
}

func (h *Handler) handleSections(w http.ResponseWriter, r *http.Request, listID string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, 200, h.store.SectionsForList(listID))

	case http.MethodPut:
		var sections []model.Section
		if err := decodeJSON(r, &sections); err != nil {
			writeErr(w, 400, "invalid json body")
			return
		}
		if err := h.store.SetSections(listID, sections); err != nil {
			h.writeStoreErr(w, err)
			return
		}
		writeJSON(w, 200, sections)

	default:
		writeErr(w, 405, "method not allowed")
	}
}

func (h *Handler) writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrListNotFound):
		writeErr(w, 404, "list not found")
	case errors.Is(err, store.ErrTaskNotFound):
		writeErr(w, 404, "task not found")
	case errors.Is(err, model.ErrTemplateWithDue),
		errors.Is(err, model.ErrTemplateWithParent),
		errors.Is(err, model.ErrTemplateWithoutRule),
		errors.Is(err, model.ErrInstanceTemplate):
		writeErr(w, 400, err.Error())
	default:
		writeErr(w, 500, err.Error())
	}
}
