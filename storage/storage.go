// Package storage defines the storage API façade consumed by the mining pipeline:
// repositories for passwords, folders, settings and server profiles, plus the
// model types they exchange.
package storage

import (
	"context"
	"sync"
	"time"
)

// Setting scopes.
const (
	ScopeClient = "client"
	ScopeUser   = "user"
	ScopeServer = "server"
)

// Password is a stored credential.
type Password struct {
	ID       string
	Label    string
	Username string
	Password string
	URL      string
	Folder   string
	Hidden   bool
	Created  time.Time
	Updated  time.Time
}

// Folder groups credentials. Hidden folders are not shown in regular listings.
type Folder struct {
	ID     string
	Label  string
	Parent string
	Hidden bool
}

// Setting is a scoped server-side setting.
type Setting struct {
	Name  string
	Value string
	Scope string
}

// FullName returns the scoped name used for lookups, e.g. client.ext.folder.private.
func (s *Setting) FullName() string {
	if s.Scope == "" {
		return s.Name
	}
	return s.Scope + "." + s.Name
}

// Server is the profile of the backend the API talks to.
// Its private folder may be updated concurrently by background writes.
type Server struct {
	ID      string
	Label   string
	BaseURL string
	User    string

	mu            sync.RWMutex
	privateFolder string
}

// PrivateFolder returns the cached hidden folder id, or "".
func (s *Server) PrivateFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privateFolder
}

// SetPrivateFolder caches the hidden folder id on the profile.
func (s *Server) SetPrivateFolder(id string) {
	s.mu.Lock()
	s.privateFolder = id
	s.mu.Unlock()
}

// PasswordRepository persists credentials.
type PasswordRepository interface {
	// Create stores p and assigns p.ID.
	Create(ctx context.Context, p *Password) error
	// List returns every stored credential.
	List(ctx context.Context) ([]*Password, error)
}

// FolderRepository persists folders.
type FolderRepository interface {
	// Create stores f and assigns f.ID.
	Create(ctx context.Context, f *Folder) error
}

// SettingRepository reads and writes scoped settings.
type SettingRepository interface {
	// FindByName returns the settings whose full name equals name.
	FindByName(ctx context.Context, name string) ([]*Setting, error)
	// Set upserts s.
	Set(ctx context.Context, s *Setting) error
}

// ServerRepository persists server profiles.
type ServerRepository interface {
	Update(ctx context.Context, s *Server) error
}

// API is the storage façade for one server.
type API interface {
	Server() *Server
	Passwords() PasswordRepository
	Folders() FolderRepository
	Settings() SettingRepository
	Servers() ServerRepository
	// NewFolder constructs an unsaved folder model.
	NewFolder(label string, hidden bool) *Folder
	// NewSetting constructs an unsaved setting model.
	NewSetting(name, value, scope string) *Setting
}
