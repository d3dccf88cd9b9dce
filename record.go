package credmine

import "time"

// taskState is the manager-owned partition of a queue record.
// Push overwrites it; every other partition survives a push.
type taskState struct {
	New      bool   `json:"new"`
	Accepted bool   `json:"accepted"`
	Feedback string `json:"feedback,omitempty"`
	Attempts int    `json:"attempts"`
}

// record is the stored form of a task, split by writer:
// capture (intake and dedup amend), state (manager), discarded/result (UI).
type record struct {
	ID        string
	Capture   Fields
	State     taskState
	Discarded bool
	Result    *Fields
	Version   int64
	CreatedAt int64
	UpdatedAt int64
}

func stateOf(t *Task) taskState {
	return taskState{
		New:      t.New,
		Accepted: t.Accepted,
		Feedback: t.Feedback,
		Attempts: t.Attempts,
	}
}

func newRecord(t *Task, nowMs int64) *record {
	r := &record{
		ID:        t.ID,
		Capture:   t.Fields,
		State:     stateOf(t),
		Discarded: t.Discarded,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
		Version:   1,
	}
	if t.Result != nil {
		res := *t.Result
		r.Result = &res
	}
	return r
}

func (r *record) task(queue string) *Task {
	t := &Task{
		ID:        r.ID,
		Queue:     queue,
		Fields:    r.Capture,
		New:       r.State.New,
		Discarded: r.Discarded,
		Accepted:  r.State.Accepted,
		Feedback:  r.State.Feedback,
		Attempts:  r.State.Attempts,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Result != nil {
		res := *r.Result
		t.Result = &res
	}
	return t
}

func nowMillis() int64 { return time.Now().UnixMilli() }
