package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/moodify/internal/mood"
)

const sampleJSON = `{
  "happy": ["Keep shining.", "Smile, it suits you."],
  "sad": ["This too shall pass."],
  "bored": ["ignored"],
  "neutral": ["  "]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStore_UnavailableReturnsFallback(t *testing.T) {
	s := NewStore("/nonexistent/quotes.json", nil)
	s.Load(context.Background())

	assert.False(t, s.Available())
	for _, m := range mood.All {
		assert.Equal(t, Fallback, s.Get(m))
	}
}

func TestStore_NeverLoadedReturnsFallback(t *testing.T) {
	s := NewStore("", nil)
	assert.Equal(t, Fallback, s.Get(mood.Happy))
}

func TestStore_LoadJSON(t *testing.T) {
	s := NewStore(writeFile(t, "quotes.json", sampleJSON), nil)
	s.Load(context.Background())

	require.True(t, s.Available())
	assert.Equal(t, 2, s.Count(mood.Happy))
	assert.Contains(t, []string{"Keep shining.", "Smile, it suits you."}, s.Get(mood.Happy))
	assert.Equal(t, "This too shall pass.", s.Get(mood.Sad))

	// blank quotes are dropped, so neutral has none
	assert.Equal(t, 0, s.Count(mood.Neutral))
	assert.Equal(t, Fallback, s.Get(mood.Neutral))
	assert.Equal(t, Fallback, s.Get(mood.Angry))
	assert.False(t, s.LoadedAt().IsZero())
}

func TestStore_GetUsesRandomIndex(t *testing.T) {
	s := NewStore(writeFile(t, "quotes.json", sampleJSON), nil)
	s.Load(context.Background())
	s.intn = func(n int) int { return n - 1 }

	assert.Equal(t, "Smile, it suits you.", s.Get(mood.Happy))
}

func TestStore_LoadYAML(t *testing.T) {
	content := `
happy:
  - "Sunny side up."
angry:
  - "Breathe in, breathe out."
`
	s := NewStore(writeFile(t, "quotes.yaml", content), nil)
	s.Load(context.Background())

	require.True(t, s.Available())
	assert.Equal(t, "Sunny side up.", s.Get(mood.Happy))
	assert.Equal(t, "Breathe in, breathe out.", s.Get(mood.Angry))
}

func TestStore_MalformedIsUnavailable(t *testing.T) {
	s := NewStore(writeFile(t, "quotes.json", `{"happy": [`), nil)
	s.Load(context.Background())

	assert.False(t, s.Available())
	assert.Equal(t, Fallback, s.Get(mood.Happy))
}

func TestStore_ReloadKeepsPreviousOnError(t *testing.T) {
	path := writeFile(t, "quotes.json", sampleJSON)
	s := NewStore(path, nil)
	s.Load(context.Background())
	require.True(t, s.Available())

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	err := s.Reload(context.Background())
	require.Error(t, err)

	assert.True(t, s.Available())
	assert.Equal(t, "This too shall pass.", s.Get(mood.Sad))
}

func TestStore_LoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/quotes.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	s := NewStore(srv.URL+"/data/quotes.json", nil)
	assert.True(t, s.IsRemote())
	s.Load(context.Background())

	require.True(t, s.Available())
	assert.Equal(t, "This too shall pass.", s.Get(mood.Sad))

	missing := NewStore(srv.URL+"/missing.json", nil)
	missing.Load(context.Background())
	assert.False(t, missing.Available())
}

func TestParse_Formats(t *testing.T) {
	assert.Equal(t, FormatJSON, formatFor("quotes.json"))
	assert.Equal(t, FormatYAML, formatFor("quotes.yml"))
	assert.Equal(t, FormatYAML, formatFor("https://example.com/q.YAML?v=2"))
	assert.Equal(t, FormatJSON, formatFor("quotes"))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "quotes.json", sampleJSON)
	s := NewStore(path, nil)
	s.Load(context.Background())

	w, err := NewWatcher(s)
	require.NoError(t, err)

	var calls atomic.Int32
	w.SetReloadCallback(func(err error) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`{"angry": ["Count to ten."]}`), 0644))

	assert.Eventually(t, func() bool {
		return s.Get(mood.Angry) == "Count to ten."
	}, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, 10*time.Millisecond)
}

func TestWatcher_StartRetriesAfterFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	path := filepath.Join(dir, "quotes.json")
	s := NewStore(path, nil)

	w, err := NewWatcher(s)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Error(t, w.Start(ctx), "directory does not exist yet")

	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`{"sad": ["This too shall pass."]}`), 0644))
	assert.Eventually(t, func() bool {
		return s.Get(mood.Sad) == "This too shall pass."
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewWatcher_RemoteRejected(t *testing.T) {
	_, err := NewWatcher(NewStore("https://example.com/quotes.json", nil))
	assert.Error(t, err)
}
