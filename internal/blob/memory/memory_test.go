package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-portal-go/internal/blob/core"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	info, err := s.Put(ctx, "a/one", bytes.NewReader([]byte("hello")), core.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"name": "one.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.NotEmpty(t, info.ETag)

	_, err = s.Put(ctx, "a/one", bytes.NewReader([]byte("again")), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	got, rc, err := s.Get(ctx, "a/one")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", got.ContentType)

	got.Metadata["name"] = "mutated"
	head, err := s.Head(ctx, "a/one")
	require.NoError(t, err)
	assert.Equal(t, "one.txt", head.Metadata["name"])

	_, err = s.Put(ctx, "b/two", bytes.NewReader(nil), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a/one", list[0].Key)

	_, err = s.PresignURL(ctx, "a/one", core.SignedURLOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupported)

	ok, err := s.Delete(ctx, "a/one")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "a/one")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Get(ctx, "a/one")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Head(ctx, "a/one")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
