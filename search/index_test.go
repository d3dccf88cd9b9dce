package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seed() *MemoryIndex {
	return NewMemoryIndex(
		Record{ID: "1", Type: TypePassword, Username: "alice", Password: "pw1"},
		Record{ID: "2", Type: TypePassword, Username: "bob", Password: "pw1"},
		Record{ID: "3", Type: TypePassword, Username: "alice", Password: "pw2"},
		Record{ID: "f1", Type: TypeFolder, Label: "pw1"},
	)
}

func TestQuery_EqualsAndType(t *testing.T) {
	idx := seed()
	got := idx.Execute(NewQuery().Where(Field("password").Equals("pw1")).Type(TypePassword))
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, "2", got[1].ID)
}

func TestQuery_InAndLimit(t *testing.T) {
	idx := seed()
	got := idx.Execute(NewQuery().Where(Field("id").In("2", "3")).Type(TypePassword).Limit(1))
	require.Len(t, got, 1)
	require.Equal(t, "2", got[0].ID)

	require.Empty(t, idx.Execute(NewQuery().Where(Field("id").In())))
}

func TestQuery_Conjunction(t *testing.T) {
	idx := seed()
	q := NewQuery().
		Where(Field("password").Equals("pw2")).
		Where(Field("username").Equals("alice")).
		Type(TypePassword)
	got := idx.Execute(q)
	require.Len(t, got, 1)
	require.Equal(t, "3", got[0].ID)

	require.Empty(t, idx.Execute(NewQuery().Where(Field("password").Equals("pw2")).Where(Field("username").Equals("bob"))))
}

func TestQuery_UnknownFieldMatchesEmpty(t *testing.T) {
	idx := seed()
	require.Len(t, idx.Execute(NewQuery().Where(Field("nope").Equals(""))), 4)
}

func TestMemoryIndex_AddItemReplaces(t *testing.T) {
	idx := seed()
	idx.AddItem(Record{ID: "1", Type: TypePassword, Username: "alice", Password: "changed"})
	require.Equal(t, 4, idx.Len())
	require.Empty(t, idx.Execute(NewQuery().Where(Field("id").Equals("1")).Where(Field("password").Equals("pw1"))))
	idx.AddItem(Record{ID: "4", Type: TypePassword, Password: "pw4"})
	require.Equal(t, 5, idx.Len())
}
