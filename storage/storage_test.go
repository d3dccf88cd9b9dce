package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetting_FullName(t *testing.T) {
	s := &Setting{Name: "ext.folder.private", Scope: ScopeClient}
	require.Equal(t, "client.ext.folder.private", s.FullName())
	require.Equal(t, "plain", (&Setting{Name: "plain"}).FullName())
}

func TestServer_PrivateFolderConcurrent(t *testing.T) {
	s := &Server{ID: "default"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetPrivateFolder(fmt.Sprintf("f%d", i))
			_ = s.PrivateFolder()
		}(i)
	}
	wg.Wait()
	require.NotEmpty(t, s.PrivateFolder())
}

func TestError_KindAndUnwrap(t *testing.T) {
	err := fmt.Errorf("create: %w", NewError(KindNotFound, "folders.create", ErrNotFound))
	require.True(t, IsKind(err, KindNotFound))
	require.False(t, IsKind(err, KindUnavailable))
	require.ErrorIs(t, err, ErrNotFound)

	var se *Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, "storage_not_found", se.ErrorKind())
	require.Contains(t, se.Error(), "folders.create")
}
