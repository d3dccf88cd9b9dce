package credmine

import (
	"context"
	"fmt"

	"github.com/passlink/credmine/search"
	"github.com/passlink/credmine/tabs"
)

// isDuplicate checks, in order, the credentials autofilled in the capture's
// tab, the pending queue and the full index. The first match wins.
func (m *Manager) isDuplicate(ctx context.Context, c *Capture) bool {
	password := c.Password.Value
	username := c.User.Value

	if ids := tabs.Strings(m.opts.tabs.For(c.TabID), tabs.AutofillIDs); len(ids) > 0 {
		q := search.NewQuery().
			Where(search.Field("id").In(ids...)).
			Type(search.TypePassword)
		for _, r := range m.index.Execute(q) {
			if r.Password == password {
				return true
			}
		}
	}

	if m.matchesPending(ctx, username, password) {
		return true
	}

	q := search.NewQuery().
		Where(search.Field("password").Equals(password)).
		Where(search.Field("username").Equals(username)).
		Type(search.TypePassword).
		Limit(1)
	return len(m.index.Execute(q)) > 0
}

// matchesPending scans the queued tasks. A task with the same non-empty
// username but a different password takes over the new password and absorbs
// the capture. Captures without a username are never merged by username.
// Queue failures are reported and the capture is treated as novel.
func (m *Manager) matchesPending(ctx context.Context, username, password string) bool {
	items, err := m.queue.Items(ctx)
	if err != nil {
		m.opts.reporter.LogError(fmt.Errorf("duplicate check: read queue: %w", err))
		return false
	}
	for _, it := range items {
		res := it.ResultFields()
		if res.Password == password {
			return true
		}
		if username == "" || res.Username != username {
			continue
		}
		f := it.Fields
		f.Password = password
		amended, err := m.amendQueued(ctx, it.ID, f)
		if !amended {
			m.log.Debugf("task %s: being stored, capture not merged", it.ID)
			continue
		}
		if err != nil {
			// the task finalized or vanished meanwhile; keep looking
			m.opts.reporter.LogError(fmt.Errorf("duplicate check: amend task %s: %w", it.ID, err))
			continue
		}
		m.log.Infof("task %s: password changed by a new capture", it.ID)
		return true
	}
	return false
}
