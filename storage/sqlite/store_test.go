package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/passlink/credmine/storage"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.db")
	s, err := Open(context.Background(), path, WithTracer(noop.NewTracerProvider().Tracer("test")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestPasswords_CreateAndList(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	p := &storage.Password{Label: "Example", Username: "bob", Password: "secret1", URL: "https://example.com"}
	require.NoError(t, s.Passwords().Create(ctx, p))
	require.NotEmpty(t, p.ID)
	require.False(t, p.Created.IsZero())

	all, err := s.Passwords().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "bob", all[0].Username)
	require.Equal(t, "secret1", all[0].Password)
}

func TestPasswords_CreateRejects(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	err := s.Passwords().Create(ctx, &storage.Password{Label: "x"})
	require.True(t, storage.IsKind(err, storage.KindValidation))

	err = s.Passwords().Create(ctx, &storage.Password{Label: "x", Password: "p", Folder: "missing"})
	require.True(t, storage.IsKind(err, storage.KindNotFound))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFolders_HiddenPassword(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	f := s.NewFolder("Private", true)
	require.NoError(t, s.Folders().Create(ctx, f))
	require.NotEmpty(t, f.ID)

	p := &storage.Password{Label: "Hidden", Password: "p", Folder: f.ID, Hidden: true}
	require.NoError(t, s.Passwords().Create(ctx, p))
}

func TestSettings_SetAndFind(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	got, err := s.Settings().FindByName(ctx, "client.ext.folder.private")
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, s.Settings().Set(ctx, s.NewSetting("ext.folder.private", "f1", storage.ScopeClient)))
	require.NoError(t, s.Settings().Set(ctx, s.NewSetting("ext.folder.private", "f2", storage.ScopeClient)))

	got, err = s.Settings().FindByName(ctx, "client.ext.folder.private")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "f2", got[0].Value)
	require.Equal(t, "ext.folder.private", got[0].Name)
	require.Equal(t, storage.ScopeClient, got[0].Scope)
}

func TestServers_UpdatePersists(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	srv := s.Server()
	require.Equal(t, DefaultServerID, srv.ID)
	require.Empty(t, srv.PrivateFolder())

	srv.SetPrivateFolder("folder-1")
	require.NoError(t, s.Servers().Update(ctx, srv))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, "folder-1", reopened.Server().PrivateFolder())

	err = reopened.Servers().Update(ctx, &storage.Server{ID: "other"})
	require.True(t, storage.IsKind(err, storage.KindNotFound))
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestStore_TracesRepositoryCalls(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "storage.db"), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.Passwords().Create(ctx, &storage.Password{Label: "Example", Password: "secret1"}))
	require.Error(t, s.Passwords().Create(ctx, &storage.Password{Label: "Example"}))

	spans := sr.Ended()
	require.Equal(t, []string{"storage.passwords.create", "storage.passwords.create"}, spanNames(spans))
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestStore_DefaultsToGlobalTracer(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Passwords().Create(context.Background(), &storage.Password{Label: "Example", Password: "secret1"}))
	require.Contains(t, spanNames(sr.Ended()), "storage.passwords.create")
}
