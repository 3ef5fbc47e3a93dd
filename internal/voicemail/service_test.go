package voicemail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"switchboard/internal/calls"
	"switchboard/pkg/objectstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	return []byte("ID3-audio"), nil
}

func newService(t *testing.T) (*Service, *MemoryRepo, *objectstore.MemoryStore, *countingFetcher) {
	t.Helper()
	ctx := context.Background()
	cr := calls.NewMemoryRepo()
	require.NoError(t, calls.NewLog(cr).Started(ctx, "t1", "CA1", "+14155550123", "+18005550100"))

	repo := NewMemoryRepo()
	store := objectstore.NewMemoryStore()
	fetch := &countingFetcher{}
	return NewService(repo, store, fetch, cr, 0), repo, store, fetch
}

func TestRecordingCompleted_StoresOncePerRecording(t *testing.T) {
	ctx := context.Background()
	svc, _, store, fetch := newService(t)

	ev := RecordingEvent{CallSid: "CA1", RecordingSid: "RE1", RecordingURL: "https://api.twilio.com/rec/RE1", DurationSeconds: 12, ExtensionCode: "101"}
	v, err := svc.RecordingCompleted(ctx, "t1", ev)
	require.NoError(t, err)
	assert.Equal(t, "voicemail/t1/101/RE1", v.StorageKey)
	assert.Equal(t, "+14155550123", v.From)

	again, err := svc.RecordingCompleted(ctx, "t1", ev)
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)
	assert.Equal(t, 1, fetch.calls)

	data, ok := store.Get(v.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "ID3-audio", string(data))

	list, err := svc.List(ctx, "t1", "", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordingCompleted_GeneralBox(t *testing.T) {
	svc, _, _, _ := newService(t)
	v, err := svc.RecordingCompleted(context.Background(), "t1", RecordingEvent{CallSid: "CA1", RecordingSid: "RE2", RecordingURL: "https://x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v.StorageKey, "voicemail/t1/general/"))
}

func TestTenantScopedAccess(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService(t)
	v, err := svc.RecordingCompleted(ctx, "t1", RecordingEvent{CallSid: "CA1", RecordingSid: "RE1", RecordingURL: "https://x", ExtensionCode: "101"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "t2", v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.PlaybackURL(ctx, "t2", v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.MarkListened(ctx, "t2", v.ID), ErrNotFound)

	u, err := svc.PlaybackURL(ctx, "t1", v.ID)
	require.NoError(t, err)
	assert.Contains(t, u, "voicemail/t1/101/RE1")

	require.NoError(t, svc.TranscriptionCompleted(ctx, "t1", TranscriptionEvent{RecordingSid: "RE1", Text: "call me back", Status: "completed"}))
	require.NoError(t, svc.MarkListened(ctx, "t1", v.ID))
	got, err := svc.Get(ctx, "t1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "call me back", got.Transcript)
	assert.True(t, got.Listened)
}

func TestTwilioFetcher_AppendsFormatAndAuthenticates(t *testing.T) {
	var gotPath, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	f := NewTwilioFetcher("AC123", "token")
	body, err := f.Fetch(context.Background(), srv.URL+"/Recordings/RE1")
	require.NoError(t, err)
	assert.Equal(t, "audio", string(body))
	assert.Equal(t, "/Recordings/RE1.mp3", gotPath)
	assert.Equal(t, "AC123", gotUser)
}
