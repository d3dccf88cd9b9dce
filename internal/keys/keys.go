package keys

// Package keys centralizes Redis key construction for Feedback Queue records.
// It is kept in internal to avoid leaking key formats to public API.

const prefix = "credmine:{"

// Queue holds precomputed keys for a queue name to avoid repeated concatenations.
// Index is the ZSET that orders task IDs by creation time (ms).
type Queue struct {
	Name  string
	Index string
	task  string
}

// For returns a set of precomputed keys for the provided queue.
func For(q string) Queue {
	p := prefix + q + "}:"
	return Queue{
		Name:  q,
		Index: p + "index",
		task:  p + "task:",
	}
}

// Task returns the record key for id within the queue.
func (k Queue) Task(id string) string { return k.task + id }
