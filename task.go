package credmine

// Feedback codes written to a finalized task.
const (
	FeedbackCreated   = "MiningPasswordCreated"
	FeedbackDiscarded = "MiningPasswordDiscarded"
)

// Fields holds the semantic credential fields of a mining task.
type Fields struct {
	Label    string `json:"label"`
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
	Hidden   bool   `json:"hidden"`
}

// Task represents a captured login undergoing reconciliation.
// It is owned by the Feedback Queue while pending and by the caller once finalized.
type Task struct {
	// ID is the stable key of the task; repeated captures with the same key coalesce.
	ID string `json:"id"`
	// Queue is the name of the Feedback Queue the task belongs to.
	Queue string `json:"queue"`
	// Fields are the captured values, set at intake.
	Fields Fields `json:"fields"`
	// Result holds fields edited by the user. Nil means the captured fields are used.
	Result *Fields `json:"result,omitempty"`
	// New is true until a credential has been created for this task.
	New bool `json:"new"`
	// Discarded is set by the user while the task is queued.
	Discarded bool `json:"discarded"`
	// Accepted marks a terminal task (created or discarded).
	Accepted bool `json:"accepted"`
	// Feedback is the outcome code shown to the user.
	Feedback string `json:"feedback,omitempty"`
	// Attempts is the number of processing cycles started for the task.
	Attempts int `json:"attempts"`
	// Version increases on every write to the queue record.
	Version int64 `json:"version"`
	// CreatedAt is the timestamp (ms) of the first push.
	CreatedAt int64 `json:"created_at,omitempty"`
	// UpdatedAt is the timestamp (ms) of the last write.
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// ResultFields returns the fields used to materialize a credential.
func (t *Task) ResultFields() Fields {
	if t.Result != nil {
		return *t.Result
	}
	return t.Fields
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	return &cp
}

// CapturedField is a single value scraped from a page.
type CapturedField struct {
	Value    string  `json:"value"`
	Selector *string `json:"selector"`
}

// Capture is a raw login observation reported by a page.
type Capture struct {
	// ID is the originating request key. A random UUID is used when empty.
	ID string `json:"id,omitempty"`
	// TabID selects the tab-scoped store used for autofill tracking.
	TabID    string         `json:"tab,omitempty"`
	Title    string         `json:"title"`
	User     *CapturedField `json:"user,omitempty"`
	Password CapturedField  `json:"password"`
	URL      string         `json:"url"`
	Hidden   bool           `json:"hidden"`
}

// normalize substitutes an empty user so later checks never branch on absence.
func (c *Capture) normalize() {
	if c.User == nil {
		c.User = &CapturedField{Value: "", Selector: nil}
	}
}

func (c *Capture) fields() Fields {
	return Fields{
		Label:    c.Title,
		Username: c.User.Value,
		Password: c.Password.Value,
		URL:      c.URL,
		Hidden:   c.Hidden,
	}
}
