package credmine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/passlink/credmine/search"
	"github.com/passlink/credmine/storage"
)

// credentialInput holds the fields checked before a credential is created.
type credentialInput struct {
	Label    string `validate:"max=64"`
	Username string `validate:"max=64"`
	Password string `validate:"required"`
	URL      string `validate:"omitempty,max=2048,url"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validateFields returns a *ValidationError for the first invalid field.
func (m *Manager) validateFields(f Fields) error {
	err := m.validate.Struct(credentialInput{
		Label:    f.Label,
		Username: f.Username,
		Password: f.Password,
		URL:      f.URL,
	})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "fields", Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "is required"}
	case "max":
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %s characters", fe.Param())}
	case "url":
		return &ValidationError{Field: field, Reason: "is not a valid URL"}
	default:
		return &ValidationError{Field: field, Reason: "failed " + fe.Tag()}
	}
}

// createPassword stores the task's result fields as a credential and indexes it.
// On success the task is finalized with FeedbackCreated.
func (m *Manager) createPassword(ctx context.Context, t *Task) error {
	f := t.ResultFields()
	if err := m.validateFields(f); err != nil {
		return err
	}
	p := &storage.Password{
		Label:    labelFor(f),
		Username: f.Username,
		Password: f.Password,
		URL:      f.URL,
		Hidden:   f.Hidden,
	}
	if p.Hidden {
		folder, err := m.folders.Resolve(ctx, m.api)
		if err != nil {
			return err
		}
		p.Folder = folder
	}
	if err := m.api.Passwords().Create(ctx, p); err != nil {
		return fmt.Errorf("create password: %w", err)
	}
	m.index.AddItem(recordOf(p))

	t.New = false
	t.Accepted = true
	t.Feedback = FeedbackCreated
	return nil
}

// labelFor falls back to the host, then the username, for untitled pages.
func labelFor(f Fields) string {
	if l := strings.TrimSpace(f.Label); l != "" {
		return l
	}
	if u, err := url.Parse(f.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	if f.Username != "" {
		return f.Username
	}
	return "Unnamed"
}

func recordOf(p *storage.Password) search.Record {
	return search.Record{
		ID:       p.ID,
		Type:     search.TypePassword,
		Label:    p.Label,
		Username: p.Username,
		Password: p.Password,
		URL:      p.URL,
		Folder:   p.Folder,
		Hidden:   p.Hidden,
	}
}

// Reindex loads every stored credential into index and returns the count.
func Reindex(ctx context.Context, api storage.API, index search.Index) (int, error) {
	all, err := api.Passwords().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	for _, p := range all {
		index.AddItem(recordOf(p))
	}
	return len(all), nil
}
