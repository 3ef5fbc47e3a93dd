package objectstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutSignDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.SignedURL(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "voicemail/t1/101/RE1", "audio/mpeg", strings.NewReader("abc")))
	data, ok := s.Get("voicemail/t1/101/RE1")
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))

	url, err := s.SignedURL(ctx, "voicemail/t1/101/RE1", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "voicemail/t1/101/RE1")

	require.NoError(t, s.Delete(ctx, "voicemail/t1/101/RE1"))
	_, ok = s.Get("voicemail/t1/101/RE1")
	assert.False(t, ok)
}
