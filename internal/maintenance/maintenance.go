// Package maintenance runs the daily housekeeping sweep: archive old
// completed work, hide completed recurring instances, and reset streaks on
// templates whose current occurrence went overdue.
package maintenance

import (
	"log"
	"time"

	"chorekeep/internal/audit"
	"chorekeep/internal/model"
	"chorekeep/internal/store"
)

const archiveRetention = 30 * 24 * time.Hour

// Stats summarizes one sweep.
type Stats struct {
	Archived     int
	Hidden       int
	StreakResets int
}

type Sweeper struct {
	store  *store.Store
	sink   audit.Sink
	logger *log.Logger
}

func NewSweeper(s *store.Store, sink audit.Sink, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{store: s, sink: sink, logger: logger}
}

// Run performs one sweep. Running it twice in the same period is harmless:
// archived records are gone from the list file, hiding checks the tombstone,
// and streak resets only fire on a non-zero streak.
func (s *Sweeper) Run(now time.Time) Stats {
	var stats Stats

	for _, lc := range s.store.Lists() {
		n, err := s.store.ArchiveOldInstances(lc.ID, archiveRetention, now)
		if err != nil {
			s.logger.Printf("maintenance: archive for list %s: %v", lc.ID, err)
		} else if n > 0 {
			s.logger.Printf("maintenance: archived %d old tasks from list %s", n, lc.ID)
			stats.Archived += n
			s.record(audit.EventTaskArchived, audit.EventMetadata{"list_id": lc.ID, "count": n})
		}

		for _, task := range s.store.TasksForList(lc.ID) {
			if task.IsRecurringInstance() && task.Status == model.StatusCompleted {
				if err := s.store.DeleteTask(lc.ID, task.UID); err != nil {
					s.logger.Printf("maintenance: hide instance %s: %v", task.UID, err)
					continue
				}
				stats.Hidden++
			}
		}
	}

	for _, lt := range s.store.AllRecurringTemplates() {
		template := lt.Template
		if template.StreakCurrent == 0 {
			continue
		}
		instances := s.store.InstancesForTemplate(lt.ListID, template.UID)
		if len(instances) == 0 {
			continue
		}
		latest := instances[0]
		for _, inst := range instances[1:] {
			if inst.OccurrenceIndex > latest.OccurrenceIndex {
				latest = inst
			}
		}
		if !latest.IsOverdue(now) {
			continue
		}

		s.logger.Printf("maintenance: resetting streak for overdue template %q (was %d)",
			template.Summary, template.StreakCurrent)
		template.StreakCurrent = 0
		template.Touch()
		if err := s.store.UpdateTask(lt.ListID, template); err != nil {
			s.logger.Printf("maintenance: persist streak reset for %s: %v", template.UID, err)
			continue
		}
		stats.StreakResets++
		s.record(audit.EventStreakReset, audit.EventMetadata{
			"list_id":      lt.ListID,
			"template_uid": template.UID,
		})
	}

	return stats
}

func (s *Sweeper) record(eventType audit.EventType, meta audit.EventMetadata) {
	if s.sink == nil {
		return
	}
	s.sink.Record(eventType, meta)
}
