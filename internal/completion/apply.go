package completion

import (
	"fmt"
	"log"
	"time"

	"chorekeep/internal/audit"
	"chorekeep/internal/model"
	"chorekeep/internal/points"
	"chorekeep/internal/store"
)

// SyncNotifier receives completion hand-offs for the remote backend. Both
// calls are fire and forget; local state is durable before either runs.
type SyncNotifier interface {
	CompleteTask(listID string, task model.Task)
	PushTask(listID string, task model.Task)
}

// Applier performs every mutation a built Context calls for. Audit and sync
// failures never surface to the caller; storage failures do.
type Applier struct {
	store  *store.Store
	ledger points.Ledger
	sink   audit.Sink
	sync   SyncNotifier
	logger *log.Logger
}

func NewApplier(s *store.Store, ledger points.Ledger, sink audit.Sink, syncNotifier SyncNotifier, logger *log.Logger) *Applier {
	if logger == nil {
		logger = log.Default()
	}
	return &Applier{store: s, ledger: ledger, sink: sink, sync: syncNotifier, logger: logger}
}

// Apply executes the plan: complete the instance, award points, advance the
// template's streak, spawn the next occurrence, then hand the template to
// the sync layer.
func (a *Applier) Apply(ctx Context) error {
	instance := ctx.Instance
	instance.Status = model.StatusCompleted
	completed := ctx.CompletedAt
	instance.LastCompleted = &completed
	if ctx.Template != nil {
		// Streak snapshot at completion time, kept on the instance for
		// history after the template moves on.
		instance.StreakCurrent = ctx.StreakAfter
	}
	instance.Touch()
	if err := a.store.UpdateTask(ctx.ListID, instance); err != nil {
		return fmt.Errorf("completion: persist instance: %w", err)
	}
	a.record(audit.EventTaskCompleted, audit.EventMetadata{
		"list_id": ctx.ListID,
		"uid":     instance.UID,
		"summary": instance.Summary,
		"on_time": ctx.OnTime,
	})

	a.awardPoints(ctx)

	pushTarget := instance
	if ctx.Template != nil {
		tmpl := *ctx.Template
		tmpl.StreakCurrent = ctx.StreakAfter
		if ctx.StreakAfter > tmpl.StreakLongest {
			tmpl.StreakLongest = ctx.StreakAfter
		}
		tmpl.LastCompleted = &completed
		tmpl.Touch()
		if err := a.store.UpdateTask(ctx.ListID, tmpl); err != nil {
			return fmt.Errorf("completion: persist template: %w", err)
		}
		a.record(audit.EventStreakUpdated, audit.EventMetadata{
			"list_id":        ctx.ListID,
			"template_uid":   tmpl.UID,
			"streak_before":  ctx.StreakBefore,
			"streak_after":   ctx.StreakAfter,
			"streak_longest": tmpl.StreakLongest,
		})

		if ctx.ShouldCreateNext {
			next := a.nextInstance(tmpl, ctx)
			if err := a.store.AddTask(ctx.ListID, next); err != nil {
				return fmt.Errorf("completion: create next instance: %w", err)
			}
			a.record(audit.EventInstanceCreated, audit.EventMetadata{
				"list_id":          ctx.ListID,
				"uid":              next.UID,
				"template_uid":     tmpl.UID,
				"occurrence_index": next.OccurrenceIndex,
			})
		}
		pushTarget = tmpl
	}

	if a.sync != nil {
		if ctx.Template != nil {
			a.sync.CompleteTask(ctx.ListID, pushTarget)
		}
		a.sync.PushTask(ctx.ListID, pushTarget)
	}
	return nil
}

// nextInstance builds the next occurrence from the TEMPLATE's fields, not
// the completed instance, so template edits propagate forward.
func (a *Applier) nextInstance(tmpl model.Task, ctx Context) model.Task {
	next := model.NewTask(tmpl.Summary)
	next.Description = tmpl.Description
	next.Tags = append([]string(nil), tmpl.Tags...)
	next.PointsValue = tmpl.PointsValue
	next.SectionID = tmpl.SectionID
	next.IsAllDay = tmpl.IsAllDay
	next.ParentUID = tmpl.UID
	next.OccurrenceIndex = ctx.NextOccurrenceIndex
	if ctx.NextDue != nil {
		due := *ctx.NextDue
		next.Due = &due
	}
	return next
}

func (a *Applier) awardPoints(ctx Context) {
	if a.ledger == nil {
		return
	}
	personID := a.ResolveAssignee(ctx.ListID, ctx.Instance)
	if personID == "" {
		return
	}
	if ctx.BasePoints > 0 {
		txID, err := a.ledger.Award(personID, ctx.BasePoints, points.ReasonTaskCompletion, map[string]string{
			"task_uid":     ctx.Instance.UID,
			"task_summary": ctx.Instance.Summary,
			"list_id":      ctx.ListID,
		})
		if err != nil {
			a.logger.Printf("completion: base award failed for %s: %v", ctx.Instance.UID, err)
		} else {
			a.record(audit.EventPointsAwarded, audit.EventMetadata{
				"person_id":      personID,
				"amount":         ctx.BasePoints,
				"task_uid":       ctx.Instance.UID,
				"transaction_id": txID,
			})
		}
	}
	if ctx.BonusPoints > 0 {
		txID, err := a.ledger.Award(personID, ctx.BonusPoints, points.ReasonStreakBonus, map[string]string{
			"task_uid":     ctx.Instance.UID,
			"task_summary": ctx.Instance.Summary,
			"streak":       fmt.Sprintf("%d", ctx.StreakAfter),
		})
		if err != nil {
			a.logger.Printf("completion: bonus award failed for %s: %v", ctx.Instance.UID, err)
		} else {
			a.record(audit.EventBonusAwarded, audit.EventMetadata{
				"person_id":      personID,
				"amount":         ctx.BonusPoints,
				"task_uid":       ctx.Instance.UID,
				"streak":         ctx.StreakAfter,
				"transaction_id": txID,
			})
		}
	}
}

// Uncomplete moves a completed task back to needs-action. Base points are
// deducted (never the streak bonus) and a recurring instance is cut loose
// from its template so re-completing it cannot farm the streak. The streak
// itself stays where it is.
func (a *Applier) Uncomplete(listID string, task model.Task, now time.Time) error {
	task.Status = model.StatusNeedsAction
	wasInstance := task.IsRecurringInstance()
	if wasInstance {
		task.ParentUID = ""
		task.OccurrenceIndex = 0
	}
	task.Touch()
	if err := a.store.UpdateTask(listID, task); err != nil {
		return fmt.Errorf("completion: persist uncomplete: %w", err)
	}

	if a.ledger != nil && task.PointsValue > 0 {
		personID := a.ResolveAssignee(listID, task)
		if personID != "" {
			if _, err := a.ledger.Award(personID, -task.PointsValue, points.ReasonTaskUncomplete, map[string]string{
				"task_uid":     task.UID,
				"task_summary": task.Summary,
				"list_id":      listID,
			}); err != nil {
				a.logger.Printf("completion: uncomplete deduction failed for %s: %v", task.UID, err)
			}
		}
	}
	a.record(audit.EventTaskUncompleted, audit.EventMetadata{
		"list_id":       listID,
		"uid":           task.UID,
		"disassociated": wasInstance,
	})

	if a.sync != nil {
		a.sync.PushTask(listID, task)
	}
	return nil
}

// ResolveAssignee finds the person a task's points go to: the task's section
// assignment wins, then the list's default, else nobody.
func (a *Applier) ResolveAssignee(listID string, task model.Task) string {
	if task.SectionID != "" {
		for _, sec := range a.store.SectionsForList(listID) {
			if sec.ID == task.SectionID && sec.PersonID != "" {
				return sec.PersonID
			}
		}
	}
	return a.store.Metadata(listID).PersonID
}

func (a *Applier) record(eventType audit.EventType, meta audit.EventMetadata) {
	if a.sink == nil {
		return
	}
	a.sink.Record(eventType, meta)
}
