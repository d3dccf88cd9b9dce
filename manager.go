package credmine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/passlink/credmine/internal/cyclectx"
	rtm "github.com/passlink/credmine/internal/runtime"
	"github.com/passlink/credmine/notify"
	"github.com/passlink/credmine/search"
	"github.com/passlink/credmine/storage"
)

// Manager turns captured logins into stored credentials. Each novel capture
// becomes a task that is processed in the background until it is created,
// discarded, or (with WithMaxAttempts) gives up.
type Manager struct {
	queue    FeedbackQueue
	api      storage.API
	index    search.Index
	folders  *FolderResolver
	validate *validator.Validate
	rt       *rtm.Group
	opts     *options
	log      Logger
	cycle    CycleFunc

	mu       sync.Mutex
	inflight map[string]*inflight
}

// inflight tracks a task whose cycle is running. Its lock serializes pushes
// with same-key captures so none of them is lost before the first push.
// While creating is set the capture is being stored and must not be amended.
type inflight struct {
	mu       sync.Mutex
	pushed   bool
	creating bool
	pending  *Fields
}

// New creates a Manager. The caller owns queue, api and index.
func New(queue FeedbackQueue, api storage.API, index search.Index, opts ...Option) *Manager {
	o := buildOptions(opts)
	rt := rtm.New(rtLogger{Logger: o.log})
	m := &Manager{
		queue:    queue,
		api:      api,
		index:    index,
		validate: newValidator(),
		rt:       rt,
		opts:     o,
		log:      o.log,
		inflight: make(map[string]*inflight),
	}
	m.folders = NewFolderResolver(rt, o.reporter)
	m.cycle = chain(m.runCycle, o.middlewares)
	return m
}

// AddPassword submits a captured login. It returns true when a new task was
// queued and false when the capture was a duplicate or merged into a task
// already in flight. Failures are reported, never returned.
func (m *Manager) AddPassword(ctx context.Context, c Capture) bool {
	c.normalize()
	if m.isDuplicate(ctx, &c) {
		m.log.Debugf("capture for %q is a duplicate", c.URL)
		return false
	}

	key := c.ID
	if key == "" {
		key = uuid.NewString()
	}
	fields := c.fields()

	m.mu.Lock()
	if e, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		if m.mergeInflight(ctx, key, e, fields) {
			return false
		}
		// the task under this key is being stored; queue the capture on its own
		key = uuid.NewString()
		m.mu.Lock()
	}
	m.inflight[key] = &inflight{}
	m.mu.Unlock()

	t := &Task{ID: key, Queue: m.queue.Name(), Fields: fields, New: true}
	err := m.rt.Go("cycle "+key, func(ctx context.Context) {
		defer m.release(key)
		m.notify(ctx, t)
		m.drive(ctx, t)
	})
	if err != nil {
		m.release(key)
		m.opts.reporter.LogError(fmt.Errorf("start cycle %s: %w", key, err))
		return false
	}
	return true
}

// Resume starts a cycle for every pending queue task that is not already in
// flight, without notifying again. It returns the number of cycles started.
// Call it once after New to pick up tasks left by an earlier run.
func (m *Manager) Resume(ctx context.Context) (int, error) {
	items, err := m.queue.Items(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume: read queue: %w", err)
	}
	started := 0
	for _, t := range items {
		t := t // per-iteration copy for the goroutine below (go 1.21 loop semantics)
		m.mu.Lock()
		if _, ok := m.inflight[t.ID]; ok {
			m.mu.Unlock()
			continue
		}
		m.inflight[t.ID] = &inflight{pushed: true}
		m.mu.Unlock()

		err := m.rt.Go("resume "+t.ID, func(ctx context.Context) {
			defer m.release(t.ID)
			m.drive(ctx, t)
		})
		if err != nil {
			m.release(t.ID)
			return started, fmt.Errorf("resume task %s: %w", t.ID, err)
		}
		started++
	}
	if started > 0 {
		m.log.Infof("resumed %d pending task(s)", started)
	}
	return started, nil
}

// Wait blocks until every started task cycle and background write has returned.
func (m *Manager) Wait() { m.rt.Wait() }

// Close cancels running cycles and waits for them. Tasks stay in the queue.
func (m *Manager) Close() { m.rt.Stop() }

// FolderResolver returns the resolver used for hidden credentials.
func (m *Manager) FolderResolver() *FolderResolver { return m.folders }

// mergeInflight folds a same-key capture into the running task. It returns
// false when the task is already being stored and cannot take the capture.
func (m *Manager) mergeInflight(ctx context.Context, key string, e *inflight, f Fields) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.creating {
		return false
	}
	if !e.pushed {
		e.pending = &f
		return true
	}
	if err := m.queue.Amend(ctx, key, f); err != nil {
		m.opts.reporter.LogError(fmt.Errorf("amend in-flight task %s: %w", key, err))
	}
	return true
}

// amendQueued replaces the capture of a queued task. It returns false without
// writing when this manager is storing that task right now.
func (m *Manager) amendQueued(ctx context.Context, id string, f Fields) (bool, error) {
	m.mu.Lock()
	e, ok := m.inflight[id]
	m.mu.Unlock()
	if !ok {
		return true, m.queue.Amend(ctx, id, f)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.creating {
		return false, nil
	}
	return true, m.queue.Amend(ctx, id, f)
}

// endCreate clears the creating mark set by pushGuarded.
func (m *Manager) endCreate(id string) {
	m.mu.Lock()
	e, ok := m.inflight[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.creating = false
	e.mu.Unlock()
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context, t *Task) {
	err := m.opts.notifier.NewPasswordNotification(ctx, notify.Notification{
		TaskID:   t.ID,
		Label:    t.Fields.Label,
		Username: t.Fields.Username,
		URL:      t.Fields.URL,
		Hidden:   t.Fields.Hidden,
	})
	if err != nil {
		m.opts.reporter.LogError(fmt.Errorf("notify task %s: %w", t.ID, err))
	}
}

// drive runs cycles for a task until it finalizes, is abandoned, or ctx ends.
func (m *Manager) drive(ctx context.Context, t *Task) {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			m.log.Warnf("task %s: stopped before attempt %d", t.ID, attempt)
			return
		}
		cctx := cyclectx.WithState(ctx, cyclectx.State{TaskID: t.ID, Attempt: attempt})
		next, err := m.cycle(cctx, t)
		if next != nil {
			t = next
		}
		if err == nil {
			m.log.Infof("task %s: finished with %s after %d attempt(s)", t.ID, t.State(), attempt)
			return
		}

		m.opts.reporter.LogError(fmt.Errorf("task %s attempt %d: %w", t.ID, attempt, err))
		if errors.Is(err, ErrTaskFinalized) {
			return
		}
		// a created or discarded outcome is kept; only the persist is retried
		if !t.Accepted {
			t.Feedback = err.Error()
		}
		if m.opts.maxAttempts > 0 && attempt >= m.opts.maxAttempts {
			// leave the last failure visible to the reviewer
			if _, err := m.queue.Push(ctx, t); err != nil {
				m.opts.reporter.LogError(fmt.Errorf("task %s: record failure: %w", t.ID, err))
			}
			m.log.Warnf("task %s: giving up after %d attempt(s)", t.ID, attempt)
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(m.opts.retryDelay):
		}
	}
}

// runCycle is one round trip: push, act on the returned state, push the outcome.
func (m *Manager) runCycle(ctx context.Context, t *Task) (*Task, error) {
	t.Attempts++
	got, err := m.pushGuarded(ctx, t)
	if err != nil {
		return t, err
	}
	t = got
	if t.Accepted {
		return t, nil
	}

	switch {
	case t.Discarded:
		t.Accepted = true
		t.Feedback = FeedbackDiscarded
	case t.New:
		err := m.createPassword(ctx, t)
		if err != nil {
			m.endCreate(t.ID)
			return t, err
		}
	}

	got, err = m.queue.Push(ctx, t)
	m.endCreate(t.ID)
	if err != nil {
		return t, err
	}
	return got, nil
}

// pushGuarded pushes under the in-flight lock and applies a same-key capture
// that arrived before the task reached the queue. When the pushed task is
// about to be stored it is marked creating before the lock is released, so
// the fields it returns are the ones that get stored.
func (m *Manager) pushGuarded(ctx context.Context, t *Task) (*Task, error) {
	m.mu.Lock()
	e, ok := m.inflight[t.ID]
	m.mu.Unlock()
	if !ok {
		return m.queue.Push(ctx, t)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil && !e.pushed {
		t.Fields = *e.pending
	}
	got, err := m.queue.Push(ctx, t)
	if err != nil {
		return t, err
	}
	e.pushed = true
	e.pending = nil
	e.creating = got.New && !got.Discarded && !got.Accepted
	return got, nil
}

// rtLogger adapts the public Logger to the internal runtime logger interface.
type rtLogger struct{ Logger }
