// Package sqlite implements the storage API on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"github.com/passlink/credmine/storage"
)

// DefaultServerID is the profile row used when none is configured.
const DefaultServerID = "default"

// tracerName names the tracer taken from the global provider when WithTracer is not used.
const tracerName = "credmine/storage/sqlite"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS passwords (
		id         TEXT PRIMARY KEY,
		label      TEXT NOT NULL,
		username   TEXT NOT NULL DEFAULT '',
		password   TEXT NOT NULL,
		url        TEXT NOT NULL DEFAULT '',
		folder     TEXT NOT NULL DEFAULT '',
		hidden     INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id     TEXT PRIMARY KEY,
		label  TEXT NOT NULL,
		parent TEXT NOT NULL DEFAULT '',
		hidden INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		name  TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		scope TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS servers (
		id             TEXT PRIMARY KEY,
		label          TEXT NOT NULL DEFAULT '',
		base_url       TEXT NOT NULL DEFAULT '',
		user_name      TEXT NOT NULL DEFAULT '',
		private_folder TEXT NOT NULL DEFAULT ''
	)`,
}

// Option configures a Store.
type Option func(*Store)

// WithTracer records repository spans on t instead of the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithServerID selects the server profile row.
func WithServerID(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.serverID = id
		}
	}
}

// Store is a storage.API backed by SQLite.
type Store struct {
	db       *sql.DB
	tracer   trace.Tracer
	serverID string
	server   *storage.Server
}

var _ storage.API = (*Store)(nil)

// Open creates or opens the database at path and loads the server profile.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: database path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	s := &Store{db: db, tracer: otel.Tracer(tracerName), serverID: DefaultServerID}
	for _, opt := range opts {
		opt(s)
	}
	if s.server, err = s.loadServer(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Server implements storage.API.
func (s *Store) Server() *storage.Server { return s.server }

// Passwords implements storage.API.
func (s *Store) Passwords() storage.PasswordRepository { return passwordRepo{s} }

// Folders implements storage.API.
func (s *Store) Folders() storage.FolderRepository { return folderRepo{s} }

// Settings implements storage.API.
func (s *Store) Settings() storage.SettingRepository { return settingRepo{s} }

// Servers implements storage.API.
func (s *Store) Servers() storage.ServerRepository { return serverRepo{s} }

// NewFolder implements storage.API.
func (s *Store) NewFolder(label string, hidden bool) *storage.Folder {
	return &storage.Folder{Label: label, Hidden: hidden}
}

// NewSetting implements storage.API.
func (s *Store) NewSetting(name, value, scope string) *storage.Setting {
	return &storage.Setting{Name: name, Value: value, Scope: scope}
}

func (s *Store) loadServer(ctx context.Context) (*storage.Server, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO servers (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, s.serverID)
	if err != nil {
		return nil, fmt.Errorf("ensure server profile: %w", err)
	}
	srv := &storage.Server{ID: s.serverID}
	var folder string
	err = s.db.QueryRowContext(ctx,
		`SELECT label, base_url, user_name, private_folder FROM servers WHERE id = ?`, s.serverID,
	).Scan(&srv.Label, &srv.BaseURL, &srv.User, &folder)
	if err != nil {
		return nil, fmt.Errorf("load server profile: %w", err)
	}
	srv.SetPrivateFolder(folder)
	return srv, nil
}

// executeAndTrace wraps a repository operation in a client span.
func (s *Store) executeAndTrace(ctx context.Context, spanName string, attrs []attribute.KeyValue, op func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()
	if err := op(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

type passwordRepo struct{ s *Store }

func (r passwordRepo) Create(ctx context.Context, p *storage.Password) error {
	return r.s.executeAndTrace(ctx, "storage.passwords.create", []attribute.KeyValue{
		attribute.String("password.label", p.Label),
		attribute.Bool("password.hidden", p.Hidden),
	}, func(ctx context.Context) error {
		if p.Password == "" {
			return storage.NewError(storage.KindValidation, "passwords.create", errors.New("password is empty"))
		}
		if p.Label == "" {
			return storage.NewError(storage.KindValidation, "passwords.create", errors.New("label is empty"))
		}
		if p.Folder != "" {
			var n int
			if err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders WHERE id = ?`, p.Folder).Scan(&n); err != nil {
				return storage.NewError(storage.KindUnavailable, "passwords.create", err)
			}
			if n == 0 {
				return storage.NewError(storage.KindNotFound, "passwords.create", fmt.Errorf("folder %s: %w", p.Folder, storage.ErrNotFound))
			}
		}
		now := time.Now().UTC()
		id := uuid.NewString()
		_, err := r.s.db.ExecContext(ctx,
			`INSERT INTO passwords (id, label, username, password, url, folder, hidden, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.Label, p.Username, p.Password, p.URL, p.Folder, boolInt(p.Hidden), now.UnixMilli(), now.UnixMilli())
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "passwords.create", err)
		}
		p.ID, p.Created, p.Updated = id, now, now
		return nil
	})
}

func (r passwordRepo) List(ctx context.Context) ([]*storage.Password, error) {
	var out []*storage.Password
	err := r.s.executeAndTrace(ctx, "storage.passwords.list", nil, func(ctx context.Context) error {
		rows, err := r.s.db.QueryContext(ctx,
			`SELECT id, label, username, password, url, folder, hidden, created_at, updated_at FROM passwords ORDER BY created_at, id`)
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "passwords.list", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				p                storage.Password
				hidden           int
				created, updated int64
			)
			if err := rows.Scan(&p.ID, &p.Label, &p.Username, &p.Password, &p.URL, &p.Folder, &hidden, &created, &updated); err != nil {
				return storage.NewError(storage.KindUnavailable, "passwords.list", err)
			}
			p.Hidden = hidden != 0
			p.Created = time.UnixMilli(created).UTC()
			p.Updated = time.UnixMilli(updated).UTC()
			out = append(out, &p)
		}
		return rows.Err()
	})
	return out, err
}

type folderRepo struct{ s *Store }

func (r folderRepo) Create(ctx context.Context, f *storage.Folder) error {
	return r.s.executeAndTrace(ctx, "storage.folders.create", []attribute.KeyValue{
		attribute.String("folder.label", f.Label),
		attribute.Bool("folder.hidden", f.Hidden),
	}, func(ctx context.Context) error {
		if f.Label == "" {
			return storage.NewError(storage.KindValidation, "folders.create", errors.New("label is empty"))
		}
		id := uuid.NewString()
		_, err := r.s.db.ExecContext(ctx, `INSERT INTO folders (id, label, parent, hidden) VALUES (?, ?, ?, ?)`,
			id, f.Label, f.Parent, boolInt(f.Hidden))
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "folders.create", err)
		}
		f.ID = id
		return nil
	})
}

type settingRepo struct{ s *Store }

func (r settingRepo) FindByName(ctx context.Context, name string) ([]*storage.Setting, error) {
	var out []*storage.Setting
	err := r.s.executeAndTrace(ctx, "storage.settings.find", []attribute.KeyValue{
		attribute.String("setting.name", name),
	}, func(ctx context.Context) error {
		var value, scope string
		err := r.s.db.QueryRowContext(ctx, `SELECT value, scope FROM settings WHERE name = ?`, name).Scan(&value, &scope)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "settings.find", err)
		}
		short := strings.TrimPrefix(name, scope+".")
		out = append(out, &storage.Setting{Name: short, Value: value, Scope: scope})
		return nil
	})
	return out, err
}

func (r settingRepo) Set(ctx context.Context, st *storage.Setting) error {
	return r.s.executeAndTrace(ctx, "storage.settings.set", []attribute.KeyValue{
		attribute.String("setting.name", st.FullName()),
	}, func(ctx context.Context) error {
		_, err := r.s.db.ExecContext(ctx,
			`INSERT INTO settings (name, value, scope) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET value = excluded.value, scope = excluded.scope`,
			st.FullName(), st.Value, st.Scope)
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "settings.set", err)
		}
		return nil
	})
}

type serverRepo struct{ s *Store }

func (r serverRepo) Update(ctx context.Context, srv *storage.Server) error {
	return r.s.executeAndTrace(ctx, "storage.servers.update", []attribute.KeyValue{
		attribute.String("server.id", srv.ID),
	}, func(ctx context.Context) error {
		res, err := r.s.db.ExecContext(ctx,
			`UPDATE servers SET label = ?, base_url = ?, user_name = ?, private_folder = ? WHERE id = ?`,
			srv.Label, srv.BaseURL, srv.User, srv.PrivateFolder(), srv.ID)
		if err != nil {
			return storage.NewError(storage.KindUnavailable, "servers.update", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.NewError(storage.KindNotFound, "servers.update", fmt.Errorf("server %s: %w", srv.ID, storage.ErrNotFound))
		}
		return nil
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
