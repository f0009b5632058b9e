package detector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/mood"
)

// writeModels creates a valid model directory and returns it.
func writeModels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range RequiredNets {
		manifest := []map[string]any{{
			"paths":   n.Shards,
			"weights": []map[string]any{{"name": "conv0/filters", "shape": []int{3, 3, 3, 16}, "dtype": "float32"}},
		}}
		data, err := json.Marshal(manifest)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, n.Manifest), data, 0644))
		for _, s := range n.Shards {
			require.NoError(t, os.WriteFile(filepath.Join(dir, s), []byte{1, 2, 3, 4}, 0644))
		}
	}
	return dir
}

func TestModelSet_Verify(t *testing.T) {
	dir := writeModels(t)
	m := NewModelSet(dir, nil)
	require.NoError(t, m.Verify())

	statuses := m.Check()
	require.Len(t, statuses, 4)
	for _, st := range statuses {
		assert.True(t, st.Present, st.Name)
		assert.NoError(t, st.Err)
	}
}

func TestModelSet_VerifyMissingShard(t *testing.T) {
	dir := writeModels(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "face_expression_model-shard1")))

	err := NewModelSet(dir, nil).Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faceExpressionNet")
}

func TestModelSet_VerifyCorruptManifest(t *testing.T) {
	dir := writeModels(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, RequiredNets[0].Manifest), []byte("{"), 0644))

	err := NewModelSet(dir, nil).Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid manifest")
}

func TestModelSet_VerifyEmptyDir(t *testing.T) {
	assert.Error(t, NewModelSet(t.TempDir(), nil).Verify())
	assert.Error(t, NewModelSet("", nil).Verify())
}

func TestModelSet_Fetch(t *testing.T) {
	src := writeModels(t)
	srv := httptest.NewServer(http.FileServer(http.Dir(src)))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models")
	m := NewModelSet(dest, nil)

	var fetched []string
	err := m.Fetch(context.Background(), srv.URL, func(name string, size int64) {
		fetched = append(fetched, name)
		assert.Positive(t, size)
	})
	require.NoError(t, err)
	assert.Equal(t, m.Files(), fetched)
	assert.NoError(t, m.Verify())
}

func TestModelSet_FetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dest := t.TempDir()
	err := NewModelSet(dest, nil).Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)

	// no partial files are left behind
	entries, _ := os.ReadDir(dest)
	assert.Empty(t, entries)
}

func newSidecar(t *testing.T, loadStatus int, faces string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"tinyFaceDetector", "faceExpressionNet"}, req.Nets)
		w.WriteHeader(loadStatus)
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "224", r.URL.Query().Get("inputSize"))
		assert.Equal(t, "0.5", r.URL.Query().Get("scoreThreshold"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, body)
		_, _ = w.Write([]byte(faces))
	})
	return httptest.NewServer(mux)
}

func TestHTTPDetector(t *testing.T) {
	srv := newSidecar(t, http.StatusOK, `{"faces":[{"box":{"x":1,"y":2,"width":30,"height":40},"score":0.9,"expressions":{"happy":0.7,"sad":0.1}}]}`)
	defer srv.Close()

	d := NewHTTPDetector(srv.URL+"/", NewModelSet(writeModels(t), nil), 0)
	frame := capture.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}

	_, err := d.DetectFrame(context.Background(), frame)
	assert.ErrorIs(t, err, ErrModelsNotLoaded)

	require.NoError(t, d.LoadModels(context.Background()))

	faces, err := d.DetectFrame(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.InDelta(t, 0.7, faces[0].Expressions[mood.Happy], 1e-9)
	assert.InDelta(t, 30, faces[0].Box.Width, 1e-9)

	_, err = d.DetectFrame(context.Background(), capture.Frame{})
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestHTTPDetector_LoadFailures(t *testing.T) {
	srv := newSidecar(t, http.StatusInternalServerError, `{}`)
	defer srv.Close()

	d := NewHTTPDetector(srv.URL, NewModelSet(writeModels(t), nil), 0)
	err := d.LoadModels(context.Background())
	require.Error(t, err)

	var detErr *DetectError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, "load models", detErr.Op)

	missing := NewHTTPDetector(srv.URL, NewModelSet(t.TempDir(), nil), 0)
	assert.Error(t, missing.LoadModels(context.Background()))
}

func TestParseFeed(t *testing.T) {
	input := strings.Join([]string{
		`[{"expressions":{"happy":0.55}}]`,
		``,
		`{"faces":[{"expressions":{"sad":0.9}},{"expressions":{"angry":0.2}}]}`,
	}, "\n")

	frames, err := ParseFeed(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], 1)
	assert.Empty(t, frames[1])
	assert.Len(t, frames[2], 2)

	_, err = ParseFeed(strings.NewReader("[{bad"))
	assert.Error(t, err)
}

func TestFeedDetector(t *testing.T) {
	input := `[{"expressions":{"happy":0.55}}]
[{"expressions":{"happy":0.62}}]`

	d := NewFeedDetectorWithReader(strings.NewReader(input))
	_, err := d.DetectFrame(context.Background(), capture.Frame{})
	assert.ErrorIs(t, err, ErrModelsNotLoaded)

	require.NoError(t, d.LoadModels(context.Background()))
	assert.Equal(t, 2, d.Remaining())

	faces, err := d.DetectFrame(context.Background(), capture.Frame{})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, faces[0].Expressions[mood.Happy], 1e-9)

	faces, err = d.DetectFrame(context.Background(), capture.Frame{})
	require.NoError(t, err)
	assert.InDelta(t, 0.62, faces[0].Expressions[mood.Happy], 1e-9)

	_, err = d.DetectFrame(context.Background(), capture.Frame{})
	assert.ErrorIs(t, err, ErrFeedExhausted)
}

func TestFeedDetector_Loop(t *testing.T) {
	d := NewFeedDetectorWithReader(strings.NewReader(`[{"expressions":{"sad":0.8}}]`))
	d.Loop = true
	require.NoError(t, d.LoadModels(context.Background()))

	for i := 0; i < 3; i++ {
		faces, err := d.DetectFrame(context.Background(), capture.Frame{})
		require.NoError(t, err)
		assert.Len(t, faces, 1)
	}
}

func TestFeedDetector_MissingFile(t *testing.T) {
	d := NewFeedDetector(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, d.LoadModels(context.Background()))
}
