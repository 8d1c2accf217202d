package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/dummycsv/internal/errs"
	"github.com/JonMunkholm/dummycsv/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := New(&filestore.Config{Provider: filestore.ProviderLocal, Root: filepath.Join(t.TempDir(), "media")})
	require.NoError(t, err)
	return d
}

func write(t *testing.T, d *Driver, key, content string) {
	t.Helper()
	w, err := d.Create(context.Background(), key)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestDriver_CreateOpen(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	require.NoError(t, d.Ping(ctx))

	write(t, d, "a.csv", "\"n\"\r\n\"1\"\r\n")

	obj, err := d.Open(ctx, "a.csv")
	require.NoError(t, err)
	defer obj.Close()

	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "\"n\"\r\n\"1\"\r\n", string(body))
	assert.Equal(t, int64(len(body)), obj.Info().Size)
	assert.Contains(t, obj.Info().ContentType, "text/csv")
}

func TestDriver_NotVisibleUntilClose(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	w, err := d.Create(ctx, "b.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	_, err = d.Stat(ctx, "b.csv")
	assert.True(t, errs.IsNotFound(err))

	require.NoError(t, w.Close())
	info, err := d.Stat(ctx, "b.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
}

func TestDriver_AbortLeavesPreviousContent(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	write(t, d, "c.csv", "first")

	w, err := d.Create(ctx, "c.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("second attempt, half written"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	obj, err := d.Open(ctx, "c.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(obj)
	obj.Close()
	assert.Equal(t, "first", string(body))

	entries, err := os.ReadDir(d.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be removed")
}

func TestDriver_Overwrite(t *testing.T) {
	d := newDriver(t)
	write(t, d, "d.csv", "old content")
	write(t, d, "d.csv", "new")

	info, err := d.Stat(context.Background(), "d.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
}

func TestDriver_Remove(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	write(t, d, "e.csv", "x")

	require.NoError(t, d.Remove(ctx, "e.csv"))
	require.NoError(t, d.Remove(ctx, "e.csv"), "removing a missing file is not an error")

	_, err := d.Open(ctx, "e.csv")
	assert.True(t, errs.IsNotFound(err))
}

func TestDriver_RejectsEscapingKeys(t *testing.T) {
	d := newDriver(t)
	_, err := d.Create(context.Background(), "../outside.csv")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(&filestore.Config{Provider: filestore.ProviderLocal})
	assert.True(t, errs.IsInvalidInput(err))
}
