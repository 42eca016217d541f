package sync

import (
	"context"
	"log"
	gosync "sync"
	"time"

	"chorekeep/internal/model"
)

// Coordinator fronts a Backend with never-propagate semantics: a failed or
// panicking backend call is logged and surfaces as false or zero stats,
// never as an error to the caller. At most one pull runs at a time; an
// overlapping pull request is a no-op.
type Coordinator struct {
	backend Backend
	logger  *log.Logger

	mu         gosync.Mutex
	inProgress bool
	lastSync   time.Time
}

func NewCoordinator(backend Backend, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{backend: backend, logger: logger}
}

func (c *Coordinator) Enabled() bool {
	return c != nil && c.backend != nil
}

// recoverPanic is deferred around every backend call so a panicking backend
// degrades to the same logged failure as an error return.
func (c *Coordinator) recoverPanic(op string, onPanic func()) {
	if r := recover(); r != nil {
		c.logger.Printf("sync: %s panicked: %v", op, r)
		if onPanic != nil {
			onPanic()
		}
	}
}

func (c *Coordinator) Initialize(ctx context.Context) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverPanic("init", func() { ok = false })
	if err := c.backend.Initialize(ctx); err != nil {
		c.logger.Printf("sync: backend init failed: %v", err)
		return false
	}
	return true
}

func (c *Coordinator) PushTask(ctx context.Context, listID string, task model.Task) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverPanic("push", func() { ok = false })
	if err := c.backend.PushTask(ctx, listID, task); err != nil {
		c.logger.Printf("sync: push error: %v", err)
		return false
	}
	return true
}

func (c *Coordinator) DeleteTask(ctx context.Context, listID string, task model.Task) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverPanic("delete", func() { ok = false })
	if err := c.backend.DeleteTask(ctx, listID, task); err != nil {
		c.logger.Printf("sync: delete error: %v", err)
		return false
	}
	return true
}

func (c *Coordinator) CompleteTask(ctx context.Context, listID string, task model.Task) (ok bool) {
	if !c.Enabled() {
		return false
	}
	defer c.recoverPanic("complete", func() { ok = false })
	if err := c.backend.CompleteTask(ctx, listID, task); err != nil {
		c.logger.Printf("sync: complete error: %v", err)
		return false
	}
	return true
}

// PullChanges runs one pull cycle. A listID of "" pulls every mapped list.
// If a pull is already running the call returns zero stats immediately.
func (c *Coordinator) PullChanges(ctx context.Context, listID string) (stats Stats) {
	if !c.Enabled() {
		return Stats{}
	}

	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		c.logger.Printf("sync: pull already in progress, skipping")
		return Stats{}
	}
	c.inProgress = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inProgress = false
		c.mu.Unlock()
	}()
	defer c.recoverPanic("pull", func() { stats = Stats{} })

	pulled, err := c.backend.PullChanges(ctx, listID)
	if err != nil {
		c.logger.Printf("sync: pull error: %v", err)
		return Stats{}
	}

	c.mu.Lock()
	c.lastSync = time.Now().UTC()
	c.mu.Unlock()
	return pulled
}

func (c *Coordinator) CreateList(ctx context.Context, listID, name string) (remoteID string, ok bool) {
	if !c.Enabled() {
		return "", false
	}
	defer c.recoverPanic("create list", func() { remoteID, ok = "", false })
	remoteID, err := c.backend.CreateList(ctx, listID, name)
	if err != nil {
		c.logger.Printf("sync: create list error: %v", err)
		return "", false
	}
	return remoteID, true
}

func (c *Coordinator) ListMappings() map[string]string {
	if !c.Enabled() {
		return map[string]string{}
	}
	return c.backend.ListMappings()
}

func (c *Coordinator) RemoteLists(ctx context.Context) (lists []RemoteList) {
	if !c.Enabled() {
		return nil
	}
	defer c.recoverPanic("remote lists", func() { lists = nil })
	lists, err := c.backend.RemoteLists(ctx)
	if err != nil {
		c.logger.Printf("sync: remote lists error: %v", err)
		return nil
	}
	return lists
}

func (c *Coordinator) LastSyncTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync, !c.lastSync.IsZero()
}

func (c *Coordinator) IsSyncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// Notifier adapts the coordinator to the completion layer's fire-and-forget
// hand-off. Calls run in their own goroutine; local state is already durable
// when they start.
type Notifier struct {
	Coordinator *Coordinator
}

func (n Notifier) CompleteTask(listID string, task model.Task) {
	go n.Coordinator.CompleteTask(context.Background(), listID, task)
}

func (n Notifier) PushTask(listID string, task model.Task) {
	go n.Coordinator.PushTask(context.Background(), listID, task)
}
