package completion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorekeep/internal/audit"
	"chorekeep/internal/model"
	"chorekeep/internal/points"
	"chorekeep/internal/store"
)

type capturedPush struct {
	listID string
	task   model.Task
}

type fakeSync struct {
	completes []capturedPush
	pushes    []capturedPush
}

func (f *fakeSync) CompleteTask(listID string, t model.Task) {
	f.completes = append(f.completes, capturedPush{listID, t})
}

func (f *fakeSync) PushTask(listID string, t model.Task) {
	f.pushes = append(f.pushes, capturedPush{listID, t})
}

func setup(t *testing.T) (*store.Store, *points.FileLedger, *audit.MemorySink) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(dir, nil)
	require.NoError(t, err)
	_, err = s.CreateList("chores", "Chores")
	require.NoError(t, err)
	l, err := points.NewFileLedger(dir)
	require.NoError(t, err)
	return s, l, audit.NewMemorySink()
}

func addTemplateAndInstance(t *testing.T, s *store.Store, rrule string, due *time.Time) (model.Task, model.Task) {
	t.Helper()
	tmpl := model.NewTask("dishes")
	tmpl.IsTemplate = true
	tmpl.RRule = rrule
	tmpl.PointsValue = 5
	if rrule == "" {
		tmpl.IsDatelessRecurring = true
	}
	require.NoError(t, s.AddTask("chores", tmpl))

	inst := model.NewTask("dishes")
	inst.ParentUID = tmpl.UID
	inst.OccurrenceIndex = 0
	inst.PointsValue = 5
	inst.Due = due
	require.NoError(t, s.AddTask("chores", inst))
	return tmpl, inst
}

func TestBuild_OnTimeMaintainsSchedule(t *testing.T) {
	s, _, _ := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	_, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := NewBuilder(s, nil).Build("chores", inst, now)

	assert.True(t, ctx.OnTime)
	assert.Equal(t, 1, ctx.StreakAfter)
	assert.True(t, ctx.ShouldCreateNext)
	require.NotNil(t, ctx.NextDue)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), ctx.NextDue.UTC())
}

func TestBuild_SameDayLateHourStillOnTime(t *testing.T) {
	s, _, _ := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	_, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)

	// Lateness is judged by calendar day only.
	now := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	ctx := NewBuilder(s, nil).Build("chores", inst, now)
	assert.True(t, ctx.OnTime)
}

func TestBuild_LateResetsStreakAndCatchesUp(t *testing.T) {
	s, _, _ := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)

	tmpl.StreakCurrent = 4
	tmpl.StreakLongest = 4
	require.NoError(t, s.UpdateTask("chores", tmpl))

	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	ctx := NewBuilder(s, nil).Build("chores", inst, now)

	assert.False(t, ctx.OnTime)
	assert.Equal(t, 4, ctx.StreakBefore)
	assert.Equal(t, 0, ctx.StreakAfter)
	// Next occurrence anchors at now, not the stale due date.
	require.NotNil(t, ctx.NextDue)
	assert.True(t, ctx.NextDue.After(now), "next due %v must be after completion moment", ctx.NextDue)
}

func TestBuild_BonusOnExactIntervalOnly(t *testing.T) {
	s, _, _ := setup(t)
	due := time.Date(2024, 1, 7, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)
	tmpl.StreakBonusPoints = 50
	tmpl.StreakBonusInterval = 7
	require.NoError(t, s.UpdateTask("chores", tmpl))

	b := NewBuilder(s, nil)
	now := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)

	for before, want := range map[int]int{5: 0, 6: 50, 7: 0, 13: 50} {
		tmpl.StreakCurrent = before
		require.NoError(t, s.UpdateTask("chores", tmpl))
		ctx := b.Build("chores", inst, now)
		assert.Equal(t, want, ctx.BonusPoints, "streak_before=%d", before)
	}
}

func TestBuild_NoBonusOnLateEvenAtInterval(t *testing.T) {
	s, _, _ := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)
	tmpl.StreakBonusPoints = 50
	tmpl.StreakBonusInterval = 7
	tmpl.StreakCurrent = 6
	require.NoError(t, s.UpdateTask("chores", tmpl))

	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	ctx := NewBuilder(s, nil).Build("chores", inst, now)
	assert.Equal(t, 0, ctx.StreakAfter)
	assert.Equal(t, 0, ctx.BonusPoints)
}

func TestBuild_DatelessAlwaysStreaks(t *testing.T) {
	s, _, _ := setup(t)
	_, inst := addTemplateAndInstance(t, s, "", nil)

	ctx := NewBuilder(s, nil).Build("chores", inst, time.Now().UTC())
	assert.True(t, ctx.OnTime)
	assert.Equal(t, 1, ctx.StreakAfter)
	assert.True(t, ctx.ShouldCreateNext)
	assert.Nil(t, ctx.NextDue)
}

func TestBuild_OrphanedInstanceFallsBackToRegular(t *testing.T) {
	s, _, _ := setup(t)
	inst := model.NewTask("orphan")
	inst.ParentUID = "gone"
	inst.PointsValue = 3
	require.NoError(t, s.AddTask("chores", inst))

	ctx := NewBuilder(s, nil).Build("chores", inst, time.Now().UTC())
	assert.Nil(t, ctx.Template)
	assert.False(t, ctx.ShouldCreateNext)
	assert.Equal(t, 3, ctx.TotalPoints)
}

func TestApply_FullOnTimeCompletion(t *testing.T) {
	s, ledger, sink := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)

	require.NoError(t, s.SetSections("chores", []model.Section{
		{ID: "sec-a", Name: "Alice", SortOrder: 1, PersonID: "person.alice"},
	}))
	inst.SectionID = "sec-a"
	require.NoError(t, s.UpdateTask("chores", inst))

	fs := &fakeSync{}
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := NewBuilder(s, nil).Build("chores", inst, now)
	require.NoError(t, NewApplier(s, ledger, sink, fs, nil).Apply(ctx))

	got, err := s.GetTask("chores", inst.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.LastCompleted)

	gotTmpl, err := s.GetTemplate("chores", tmpl.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotTmpl.StreakCurrent)
	assert.Equal(t, 1, gotTmpl.StreakLongest)

	instances := s.InstancesForTemplate("chores", tmpl.UID)
	require.Len(t, instances, 2)
	var next model.Task
	for _, i := range instances {
		if i.OccurrenceIndex == 1 {
			next = i
		}
	}
	require.NotEmpty(t, next.UID, "next instance at occurrence 1 expected")
	require.NotNil(t, next.Due)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), next.Due.UTC())

	assert.Equal(t, 5, ledger.Balance("person.alice").Balance)
	assert.NotEmpty(t, sink.Events(time.Time{}, []audit.EventType{audit.EventTaskCompleted}))
	assert.NotEmpty(t, sink.Events(time.Time{}, []audit.EventType{audit.EventInstanceCreated}))

	// Template, never the instance, goes to the remote side.
	require.Len(t, fs.completes, 1)
	assert.Equal(t, tmpl.UID, fs.completes[0].task.UID)
	require.Len(t, fs.pushes, 1)
	assert.Equal(t, tmpl.UID, fs.pushes[0].task.UID)
}

func TestApply_ReplayDoesNotDuplicateNextInstance(t *testing.T) {
	s, ledger, sink := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)

	b := NewBuilder(s, nil)
	a := NewApplier(s, ledger, sink, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.Apply(b.Build("chores", inst, now)))
	completed, err := s.GetTask("chores", inst.UID)
	require.NoError(t, err)

	// Uncomplete disassociates; re-associate manually to simulate the raw
	// replay (same occurrence index completed twice).
	require.NoError(t, a.Uncomplete("chores", completed, now))
	replayed, err := s.GetTask("chores", inst.UID)
	require.NoError(t, err)
	replayed.ParentUID = tmpl.UID
	replayed.OccurrenceIndex = 0
	require.NoError(t, s.UpdateTask("chores", replayed))

	require.NoError(t, a.Apply(b.Build("chores", replayed, now)))

	indexSeen := map[int]int{}
	for _, i := range s.InstancesForTemplate("chores", tmpl.UID) {
		indexSeen[i.OccurrenceIndex]++
	}
	assert.Equal(t, 1, indexSeen[1], "exactly one instance at occurrence 1")
}

func TestUncomplete_DeductsAndDisassociates(t *testing.T) {
	s, ledger, sink := setup(t)
	due := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tmpl, inst := addTemplateAndInstance(t, s, "FREQ=DAILY", &due)
	require.NoError(t, s.SetMetadata("chores", model.ListMetadata{PersonID: "person.bob"}))

	b := NewBuilder(s, nil)
	a := NewApplier(s, ledger, sink, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, a.Apply(b.Build("chores", inst, now)))
	assert.Equal(t, 5, ledger.Balance("person.bob").Balance)

	completed, err := s.GetTask("chores", inst.UID)
	require.NoError(t, err)
	require.NoError(t, a.Uncomplete("chores", completed, now))

	got, err := s.GetTask("chores", inst.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsAction, got.Status)
	assert.Empty(t, got.ParentUID)
	assert.Zero(t, got.OccurrenceIndex)

	// Base points come back off; the streak stays.
	assert.Equal(t, 0, ledger.Balance("person.bob").Balance)
	gotTmpl, err := s.GetTemplate("chores", tmpl.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotTmpl.StreakCurrent)
}

func TestResolveAssignee_SectionBeatsListDefault(t *testing.T) {
	s, ledger, sink := setup(t)
	require.NoError(t, s.SetSections("chores", []model.Section{
		{ID: "sec-a", Name: "Alice", SortOrder: 1, PersonID: "person.alice"},
	}))
	require.NoError(t, s.SetMetadata("chores", model.ListMetadata{PersonID: "person.bob"}))

	a := NewApplier(s, ledger, sink, nil, nil)

	task := model.NewTask("x")
	task.SectionID = "sec-a"
	assert.Equal(t, "person.alice", a.ResolveAssignee("chores", task))

	task.SectionID = ""
	assert.Equal(t, "person.bob", a.ResolveAssignee("chores", task))
}
