package sync

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"chorekeep/internal/completion"
	"chorekeep/internal/model"
	"chorekeep/internal/store"
)

// importRetention bounds how far back completed remote tasks are imported.
const importRetention = 30 * 24 * time.Hour

// TickTickBackend reconciles local lists with TickTick projects. The remote
// side never sees recurring instances; only templates are pushed, carrying
// the current instance's due date, and instances are reconstructed locally
// from remote completions.
type TickTickBackend struct {
	name    string
	client  *Client
	store   *store.Store
	loc     *time.Location
	logger  *log.Logger
	builder *completion.Builder
	applier *completion.Applier
}

// NewTickTickBackend wires the backend. The builder/applier pair is used to
// replay remote completions through the same streak and points semantics as
// local ones; it must be constructed WITHOUT a sync notifier or every pull
// would push its own echo back out.
func NewTickTickBackend(client *Client, s *store.Store, builder *completion.Builder, applier *completion.Applier, loc *time.Location, logger *log.Logger) *TickTickBackend {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TickTickBackend{
		name:    "ticktick",
		client:  client,
		store:   s,
		loc:     loc,
		logger:  logger,
		builder: builder,
		applier: applier,
	}
}

func (b *TickTickBackend) Name() string { return b.name }

func (b *TickTickBackend) Initialize(ctx context.Context) error {
	// Token validity check doubles as connectivity probe.
	_, err := b.client.Projects(ctx)
	return err
}

// ListMappings returns localListID -> remote project id for every mapped list.
func (b *TickTickBackend) ListMappings() map[string]string {
	mappings := map[string]string{}
	for _, lc := range b.store.Lists() {
		info, ok := b.store.ListSyncInfo(lc.ID, b.name)
		if ok && info.ProjectID != "" {
			mappings[lc.ID] = info.ProjectID
		}
	}
	return mappings
}

func (b *TickTickBackend) RemoteLists(ctx context.Context) ([]RemoteList, error) {
	projects, err := b.client.Projects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteList, 0, len(projects))
	for _, p := range projects {
		out = append(out, RemoteList{ID: p.ID, Name: p.Name})
	}
	return out, nil
}

// CreateList creates a remote project and records the mapping.
func (b *TickTickBackend) CreateList(ctx context.Context, listID, name string) (string, error) {
	project, err := b.client.CreateProject(ctx, name)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = b.store.SetListSyncInfo(listID, b.name, model.ListSyncInfo{
		ProjectID:    project.ID,
		Status:       model.SyncStatusSynced,
		LastSyncedAt: &now,
	})
	if err != nil {
		return "", err
	}
	b.logger.Printf("sync: mapped list %s to project %s (%s)", listID, project.ID, name)
	return project.ID, nil
}

// PushTask sends a template or regular task to the remote project. Recurring
// instances are skipped outright. On failure the task is left in push_failed
// for the next pull cycle to retry.
func (b *TickTickBackend) PushTask(ctx context.Context, listID string, task model.Task) error {
	info, ok := b.store.ListSyncInfo(listID, b.name)
	if !ok || info.ProjectID == "" {
		b.logger.Printf("sync: list %s has no project mapping, skipping push", listID)
		return nil
	}
	if task.IsRecurringInstance() {
		return nil
	}
	if task.IsDatelessRecurring {
		// Dateless checklists have nothing meaningful to show remotely.
		return nil
	}

	sinfo := task.Sync[b.name]
	sinfo.Status = model.SyncStatusPendingPush
	task.SetSyncInfo(b.name, sinfo)
	if err := b.store.UpdateTask(listID, task); err != nil {
		return err
	}

	payload := b.taskPayload(task, listID, info.ProjectID)

	var resp RemoteTask
	var err error
	if sinfo.ID != "" {
		resp, err = b.client.UpdateTask(ctx, sinfo.ID, payload)
	} else {
		resp, err = b.client.CreateTask(ctx, payload)
	}
	if err != nil {
		b.logger.Printf("sync: push failed for %q: %v", task.Summary, err)
		sinfo.Status = model.SyncStatusPushFailed
		task.SetSyncInfo(b.name, sinfo)
		if serr := b.store.UpdateTask(listID, task); serr != nil {
			b.logger.Printf("sync: persist push_failed for %s: %v", task.UID, serr)
		}
		return err
	}

	if sinfo.ID == "" {
		sinfo.ID = resp.ID
	}
	sinfo.Status = model.SyncStatusSynced
	sinfo.Etag = resp.Etag
	now := time.Now().UTC()
	sinfo.LastSyncedAt = &now
	if task.IsRecurringTemplate() {
		if current, ok := b.currentInstance(listID, task.UID); ok {
			idx := current.OccurrenceIndex
			sinfo.LastSyncedOccurrenceIndex = &idx
		}
	}
	task.SetSyncInfo(b.name, sinfo)
	return b.store.UpdateTask(listID, task)
}

// DeleteTask removes the remote copy. A task that was never synced is a
// successful no-op.
func (b *TickTickBackend) DeleteTask(ctx context.Context, listID string, task model.Task) error {
	remoteID := task.SyncID(b.name)
	if remoteID == "" {
		return nil
	}
	info, ok := b.store.ListSyncInfo(listID, b.name)
	if !ok || info.ProjectID == "" {
		return nil
	}
	return b.client.DeleteTask(ctx, info.ProjectID, remoteID)
}

// CompleteTask marks the remote copy completed, then advances its due date
// to the freshly created local instance so the remote shows the next
// occurrence.
func (b *TickTickBackend) CompleteTask(ctx context.Context, listID string, task model.Task) error {
	remoteID := task.SyncID(b.name)
	if remoteID == "" {
		return nil
	}
	info, ok := b.store.ListSyncInfo(listID, b.name)
	if !ok || info.ProjectID == "" {
		return nil
	}

	if err := b.client.CompleteTask(ctx, info.ProjectID, remoteID); err != nil {
		return err
	}

	if task.IsRecurringTemplate() {
		instances := b.store.InstancesForTemplate(listID, task.UID)
		if len(instances) == 0 {
			return nil
		}
		sort.Slice(instances, func(i, j int) bool {
			return instances[i].OccurrenceIndex > instances[j].OccurrenceIndex
		})
		latest := instances[0]
		if latest.Due != nil {
			dueStr, tzName := formatRemoteDate(*latest.Due, b.loc)
			_, err := b.client.UpdateTask(ctx, remoteID, RemoteTask{
				ID:       remoteID,
				Title:    task.Summary,
				DueDate:  dueStr,
				TimeZone: tzName,
				IsAllDay: task.IsAllDay,
			})
			return err
		}
	}
	return nil
}

// PullChanges reconciles mapped lists against the remote. Failed pushes are
// retried first, then remote tasks are walked: etag mismatches overwrite
// local state, unknown ids are imported, local records whose remote id is
// gone are soft-deleted.
func (b *TickTickBackend) PullChanges(ctx context.Context, listID string) (Stats, error) {
	var stats Stats
	mappings := b.ListMappings()

	var listsToSync []string
	if listID != "" {
		if _, ok := mappings[listID]; ok {
			listsToSync = append(listsToSync, listID)
		}
	} else {
		for id := range mappings {
			listsToSync = append(listsToSync, id)
		}
		sort.Strings(listsToSync)
	}

	for _, localListID := range listsToSync {
		b.retryFailedPushes(ctx, localListID)
	}

	for _, localListID := range listsToSync {
		listStats, err := b.pullList(ctx, localListID, mappings[localListID])
		if err != nil {
			b.logger.Printf("sync: pull failed for list %s: %v", localListID, err)
			continue
		}
		stats.Created += listStats.Created
		stats.Updated += listStats.Updated
		stats.Deleted += listStats.Deleted
	}
	return stats, nil
}

func (b *TickTickBackend) retryFailedPushes(ctx context.Context, listID string) {
	var failed []model.Task
	for _, t := range b.store.TasksForList(listID) {
		if t.Sync[b.name].Status == model.SyncStatusPushFailed {
			failed = append(failed, t)
		}
	}
	for _, t := range b.store.TemplatesForList(listID) {
		if t.Sync[b.name].Status == model.SyncStatusPushFailed {
			failed = append(failed, t)
		}
	}
	if len(failed) == 0 {
		return
	}
	b.logger.Printf("sync: retrying %d failed push(es) for list %s", len(failed), listID)
	for _, t := range failed {
		if err := b.PushTask(ctx, listID, t); err != nil {
			b.logger.Printf("sync: retry push for %s still failing: %v", t.UID, err)
		}
	}
}

func (b *TickTickBackend) pullList(ctx context.Context, listID, projectID string) (Stats, error) {
	var stats Stats

	data, err := b.client.GetProjectData(ctx, projectID)
	if err != nil {
		return stats, err
	}

	// Templates and regular tasks sync; instances never do.
	known := map[string]model.Task{}
	for _, t := range b.store.TemplatesForList(listID) {
		if id := t.SyncID(b.name); id != "" {
			known[id] = t
		}
	}
	for _, t := range b.store.TasksForList(listID) {
		if t.IsRecurringInstance() {
			continue
		}
		if id := t.SyncID(b.name); id != "" {
			known[id] = t
		}
	}

	for _, remote := range data.Tasks {
		local, ok := known[remote.ID]
		if !ok {
			if b.tooOldToImport(remote) {
				continue
			}
			if err := b.importRemoteTask(listID, remote); err != nil {
				b.logger.Printf("sync: import of %q failed: %v", remote.Title, err)
				continue
			}
			stats.Created++
			continue
		}
		delete(known, remote.ID)

		sinfo := local.Sync[b.name]
		if sinfo.Status == model.SyncStatusPendingPush || sinfo.Status == model.SyncStatusPushFailed {
			// Local wins while a write is in flight.
			continue
		}
		if remote.Etag == "" || remote.Etag == sinfo.Etag {
			continue
		}

		if err := b.updateLocalFromRemote(listID, local, remote); err != nil {
			b.logger.Printf("sync: applying remote change to %s failed: %v", local.UID, err)
			continue
		}
		stats.Updated++
	}

	// Anything left was deleted remotely.
	for _, local := range known {
		if local.IsDeleted() {
			continue
		}
		b.logger.Printf("sync: %q gone from remote, soft-deleting locally", local.Summary)
		if local.IsRecurringTemplate() {
			if _, err := b.store.DeleteRecurringTaskAndInstances(listID, local.UID); err != nil {
				b.logger.Printf("sync: soft-delete template %s: %v", local.UID, err)
				continue
			}
		} else if err := b.store.DeleteTask(listID, local.UID); err != nil {
			b.logger.Printf("sync: soft-delete %s: %v", local.UID, err)
			continue
		}
		stats.Deleted++
	}

	return stats, nil
}

func (b *TickTickBackend) tooOldToImport(remote RemoteTask) bool {
	if remote.Status != 2 || remote.CompletedTime == 0 {
		return false
	}
	completed := time.UnixMilli(remote.CompletedTime).UTC()
	return time.Since(completed) > importRetention
}

// updateLocalFromRemote overwrites local fields with the remote's, detecting
// remote-side completions of recurring templates along the way.
func (b *TickTickBackend) updateLocalFromRemote(listID string, local model.Task, remote RemoteTask) error {
	local.Summary = remote.Title

	description, meta := DecodeMetadata(remote.Content)
	local.Description = description
	if meta.StreakCurrent != nil {
		local.StreakCurrent = *meta.StreakCurrent
	}
	if meta.StreakLongest != nil {
		local.StreakLongest = *meta.StreakLongest
	}
	if meta.OccurrenceIndex != nil {
		local.OccurrenceIndex = *meta.OccurrenceIndex
	}

	sinfo := local.Sync[b.name]
	if local.IsRecurringTemplate() && sinfo.LastSyncedOccurrenceIndex == nil {
		// Records from before index tracking: seed from the current instance.
		if current, ok := b.currentInstance(listID, local.UID); ok {
			idx := current.OccurrenceIndex
			sinfo.LastSyncedOccurrenceIndex = &idx
			local.SetSyncInfo(b.name, sinfo)
		}
	}

	if local.IsRecurringTemplate() && sinfo.LastSyncedOccurrenceIndex != nil {
		b.detectRemoteCompletion(listID, &local, remote, *sinfo.LastSyncedOccurrenceIndex)
		// detectRemoteCompletion may have advanced streaks on the stored
		// template; refresh our copy so the overwrite below keeps them.
		if fresh, err := b.store.GetTemplate(listID, local.UID); err == nil {
			local.StreakCurrent = fresh.StreakCurrent
			local.StreakLongest = fresh.StreakLongest
			local.LastCompleted = fresh.LastCompleted
			local.Sync = fresh.Sync
		}
	}

	local.Tags = append([]string(nil), remote.Tags...)
	if remote.DueDate != "" && !local.IsTemplate {
		if due, err := parseRemoteDate(remote.DueDate); err == nil {
			local.Due = due
		}
	}
	local.IsAllDay = remote.IsAllDay
	if remote.RepeatFlag != "" {
		local.RRule = strings.TrimPrefix(remote.RepeatFlag, "RRULE:")
	}
	if remote.Status == 2 {
		local.Status = model.StatusCompleted
	} else {
		local.Status = model.StatusNeedsAction
	}

	sinfo = local.Sync[b.name]
	sinfo.Status = model.SyncStatusSynced
	sinfo.Etag = remote.Etag
	now := time.Now().UTC()
	sinfo.LastSyncedAt = &now
	local.SetSyncInfo(b.name, sinfo)

	local.Touch()
	if err := b.store.UpdateTask(listID, local); err != nil {
		return err
	}

	if local.IsRecurringTemplate() {
		b.propagateTemplateEdits(listID, local)
	}
	return nil
}

// detectRemoteCompletion checks whether the remote due date moved past the
// last-synced instance's due date, which means the remote side completed the
// occurrence. The completion is replayed locally through the same builder
// and applier local completions use, with the remote's new due date for the
// next instance.
func (b *TickTickBackend) detectRemoteCompletion(listID string, template *model.Task, remote RemoteTask, lastSyncedIndex int) {
	instances := b.store.InstancesForTemplate(listID, template.UID)
	var lastSynced *model.Task
	for i := range instances {
		if instances[i].OccurrenceIndex == lastSyncedIndex {
			lastSynced = &instances[i]
			break
		}
	}
	if lastSynced == nil {
		b.logger.Printf("sync: no instance at occurrence %d for template %s", lastSyncedIndex, template.UID)
		return
	}
	if lastSynced.Status == model.StatusCompleted {
		return
	}
	if remote.DueDate == "" || lastSynced.Due == nil {
		return
	}
	remoteDue, err := parseRemoteDate(remote.DueDate)
	if err != nil {
		return
	}
	if !remoteDue.After(*lastSynced.Due) {
		// Moved earlier or unchanged: a plain edit, not a completion.
		return
	}

	b.logger.Printf("sync: remote completed %q (due moved %s -> %s)",
		template.Summary, lastSynced.Due.Format(time.RFC3339), remoteDue.Format(time.RFC3339))

	completedAt := time.Now().UTC()
	if remote.CompletedTime != 0 {
		completedAt = time.UnixMilli(remote.CompletedTime).UTC()
	}

	ctx := b.builder.Build(listID, *lastSynced, completedAt)
	// The remote dictates when the next occurrence is due, but an instance
	// already sitting at the next index still wins (replay guard).
	nextExists := false
	for _, inst := range instances {
		if inst.OccurrenceIndex == ctx.NextOccurrenceIndex {
			nextExists = true
			break
		}
	}
	ctx.NextDue = remoteDue
	ctx.ShouldCreateNext = !nextExists
	if err := b.applier.Apply(ctx); err != nil {
		b.logger.Printf("sync: replaying remote completion for %s: %v", template.UID, err)
		return
	}

	// Track the occurrence that is now current.
	if fresh, err := b.store.GetTemplate(listID, template.UID); err == nil {
		sinfo := fresh.Sync[b.name]
		next := ctx.NextOccurrenceIndex
		sinfo.LastSyncedOccurrenceIndex = &next
		fresh.SetSyncInfo(b.name, sinfo)
		if err := b.store.UpdateTask(listID, fresh); err != nil {
			b.logger.Printf("sync: persist occurrence index for %s: %v", template.UID, err)
		}
	}
}

// propagateTemplateEdits copies remote-editable fields from a template down
// to its active (not deleted, not completed) instances.
func (b *TickTickBackend) propagateTemplateEdits(listID string, template model.Task) {
	for _, inst := range b.store.InstancesForTemplate(listID, template.UID) {
		if inst.Status == model.StatusCompleted {
			continue
		}
		inst.Summary = template.Summary
		inst.Description = template.Description
		inst.Tags = append([]string(nil), template.Tags...)
		inst.Touch()
		if err := b.store.UpdateTask(listID, inst); err != nil {
			b.logger.Printf("sync: propagate template edit to %s: %v", inst.UID, err)
		}
	}
}

// importRemoteTask creates local records for a remote task with no local
// match: a template plus first instance when it recurs, else a standalone
// task.
func (b *TickTickBackend) importRemoteTask(listID string, remote RemoteTask) error {
	description, meta := DecodeMetadata(remote.Content)
	rrule := strings.TrimPrefix(remote.RepeatFlag, "RRULE:")

	now := time.Now().UTC()
	sinfo := model.SyncInfo{
		ID:           remote.ID,
		Etag:         remote.Etag,
		Status:       model.SyncStatusSynced,
		LastSyncedAt: &now,
	}

	if rrule != "" {
		template := model.NewTask(remote.Title)
		template.Description = description
		template.Tags = append([]string(nil), remote.Tags...)
		template.RRule = rrule
		template.IsTemplate = true
		template.IsAllDay = remote.IsAllDay
		if meta.StreakCurrent != nil {
			template.StreakCurrent = *meta.StreakCurrent
		}
		if meta.StreakLongest != nil {
			template.StreakLongest = *meta.StreakLongest
		}
		template.SetSyncInfo(b.name, sinfo)
		if err := b.store.AddTask(listID, template); err != nil {
			return err
		}

		if remote.DueDate != "" {
			due, err := parseRemoteDate(remote.DueDate)
			if err != nil {
				b.logger.Printf("sync: unparseable due date %q on import of %q", remote.DueDate, remote.Title)
				return nil
			}
			instance := model.NewTask(remote.Title)
			instance.Description = description
			instance.Tags = append([]string(nil), remote.Tags...)
			instance.Due = due
			instance.ParentUID = template.UID
			instance.IsAllDay = remote.IsAllDay
			if meta.OccurrenceIndex != nil {
				instance.OccurrenceIndex = *meta.OccurrenceIndex
			}
			return b.store.AddTask(listID, instance)
		}
		return nil
	}

	task := model.NewTask(remote.Title)
	task.Description = description
	task.Tags = append([]string(nil), remote.Tags...)
	task.IsAllDay = remote.IsAllDay
	if remote.DueDate != "" {
		if due, err := parseRemoteDate(remote.DueDate); err == nil {
			task.Due = due
		}
	}
	if remote.Status == 2 {
		task.Status = model.StatusCompleted
	}
	task.SetSyncInfo(b.name, sinfo)
	return b.store.AddTask(listID, task)
}

// taskPayload builds the wire form of a local task. Templates carry the
// recurrence rule plus the current instance's due date so the remote shows
// when the next occurrence is due.
func (b *TickTickBackend) taskPayload(task model.Task, listID, projectID string) RemoteTask {
	payload := RemoteTask{
		Title:     task.Summary,
		ProjectID: projectID,
		Content:   EncodeMetadata(task),
		Tags:      task.Tags,
	}
	if task.Status == model.StatusCompleted {
		payload.Status = 2
	}
	if id := task.SyncID(b.name); id != "" {
		payload.ID = id
	}

	if task.Due != nil && !task.IsTemplate {
		payload.DueDate, payload.TimeZone = formatRemoteDate(*task.Due, b.loc)
		payload.IsAllDay = task.IsAllDay
	}

	if task.IsTemplate && task.RRule != "" {
		if strings.HasPrefix(task.RRule, "RRULE:") {
			payload.RepeatFlag = task.RRule
		} else {
			payload.RepeatFlag = "RRULE:" + task.RRule
		}
		if current, ok := b.currentInstance(listID, task.UID); ok && current.Due != nil {
			payload.DueDate, payload.TimeZone = formatRemoteDate(*current.Due, b.loc)
			payload.IsAllDay = task.IsAllDay
		}
	}
	return payload
}

// currentInstance is the lowest-indexed incomplete instance of a template.
func (b *TickTickBackend) currentInstance(listID, templateUID string) (model.Task, bool) {
	instances := b.store.InstancesForTemplate(listID, templateUID)
	var current model.Task
	found := false
	for _, inst := range instances {
		if inst.Status == model.StatusCompleted {
			continue
		}
		if !found || inst.OccurrenceIndex < current.OccurrenceIndex {
			current = inst
			found = true
		}
	}
	return current, found
}
