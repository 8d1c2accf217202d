package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dummycsv/internal/core"
	"github.com/JonMunkholm/dummycsv/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, "alice", []byte("hash"), time.Now())
	require.NoError(t, err)

	schema, err := s.CreateSchema(ctx, core.Schema{
		OwnerID: u.ID,
		Title:   "People",
		Columns: []core.Column{
			{Name: "Age", Kind: core.KindInteger, Params: &core.Params{Start: 1, End: 2}},
		},
	})
	require.NoError(t, err)

	schema.Columns[0].Name = "changed"
	schema.Columns[0].Params.End = 99

	got, err := s.GetSchema(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "Age", got.Columns[0].Name)
	assert.Equal(t, int64(2), got.Columns[0].Params.End)
}

func TestStore_UsernamesAreCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateUser(ctx, "Alice", []byte("hash"), time.Now())
	require.NoError(t, err)

	u, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)
}
