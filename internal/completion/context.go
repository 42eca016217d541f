// Package completion turns "this chore is done" into a single consistent
// outcome. The Builder computes the whole plan up front without touching
// storage; the Applier then performs every mutation from that plan. Nothing
// is written until the plan is complete, so a failed completion leaves no
// half-applied state behind.
package completion

import (
	"log"
	"time"

	"chorekeep/internal/model"
	"chorekeep/internal/recur"
	"chorekeep/internal/store"
)

// Context is the immutable plan for one completion event. Every downstream
// decision (points, streak transition, next occurrence) is captured here.
type Context struct {
	ListID      string
	Instance    model.Task
	Template    *model.Task
	CompletedAt time.Time

	OnTime       bool
	StreakBefore int
	StreakAfter  int

	BasePoints  int
	BonusPoints int
	TotalPoints int

	ShouldCreateNext    bool
	NextOccurrenceIndex int
	NextDue             *time.Time
}

type Builder struct {
	store  *store.Store
	logger *log.Logger
}

func NewBuilder(s *store.Store, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{store: s, logger: logger}
}

// Build computes the completion plan for an instance or regular task moving
// to completed, without writing anything.
func (b *Builder) Build(listID string, instance model.Task, now time.Time) Context {
	ctx := Context{
		ListID:      listID,
		Instance:    instance,
		CompletedAt: now,
		BasePoints:  instance.PointsValue,
	}

	var template *model.Task
	if instance.ParentUID != "" {
		tmpl, err := b.store.GetTemplate(listID, instance.ParentUID)
		if err != nil {
			// Orphaned instance. Complete it as a plain task.
			b.logger.Printf("completion: template %s missing for instance %s, treating as regular task",
				instance.ParentUID, instance.UID)
		} else {
			template = &tmpl
		}
	}
	ctx.Template = template

	// Lateness is judged by calendar day, not time of day. A chore due at
	// 08:00 completed at 22:00 the same day is still on time.
	ctx.OnTime = instance.Due == nil || !dateAfter(now, *instance.Due)

	if template != nil {
		ctx.StreakBefore = template.StreakCurrent
		validForStreak := ctx.OnTime || template.IsDatelessRecurring
		if validForStreak {
			ctx.StreakAfter = ctx.StreakBefore + 1
		} else {
			ctx.StreakAfter = 0
		}

		if template.StreakBonusPoints > 0 && template.StreakBonusInterval > 0 &&
			ctx.StreakAfter > 0 && ctx.StreakAfter%template.StreakBonusInterval == 0 {
			ctx.BonusPoints = template.StreakBonusPoints
		}

		ctx.NextOccurrenceIndex = instance.OccurrenceIndex + 1
		if b.nextInstanceExists(listID, template.UID, ctx.NextOccurrenceIndex) {
			// Replay: uncomplete then recomplete must not spawn a duplicate.
			ctx.ShouldCreateNext = false
		} else if template.IsDatelessRecurring {
			ctx.ShouldCreateNext = true
		} else {
			ctx.NextDue = recur.NextDue(*template, instance.Due, now)
			ctx.ShouldCreateNext = ctx.NextDue != nil
		}
	}

	ctx.TotalPoints = ctx.BasePoints + ctx.BonusPoints
	return ctx
}

func (b *Builder) nextInstanceExists(listID, templateUID string, index int) bool {
	for _, inst := range b.store.InstancesForTemplate(listID, templateUID) {
		if inst.OccurrenceIndex == index {
			return true
		}
	}
	return false
}

// dateAfter reports whether a's calendar date is strictly after b's.
func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
