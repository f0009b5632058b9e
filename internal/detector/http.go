package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/mood"
)

// HTTPDetector delegates inference to a local sidecar service that wraps
// the face detection library.
//
// The sidecar contract:
//
//	POST /models  {"path": "<dir>", "nets": ["tinyFaceDetector", ...]}  -> 200
//	POST /detect?inputSize=224&scoreThreshold=0.5  (image/jpeg body)
//	     -> {"faces": [{"box": {...}, "score": 0.9, "expressions": {"happy": 0.7}}]}
type HTTPDetector struct {
	BaseURL        string
	Models         *ModelSet
	InputSize      int
	ScoreThreshold float64

	client *http.Client
	loaded atomic.Bool
}

// NewHTTPDetector creates a detector talking to baseURL.
func NewHTTPDetector(baseURL string, models *ModelSet, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDetector{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		Models:         models,
		InputSize:      224,
		ScoreThreshold: 0.5,
		client:         &http.Client{Timeout: timeout},
	}
}

// Name returns the adapter identifier.
func (d *HTTPDetector) Name() string {
	return "http"
}

type loadRequest struct {
	Path string   `json:"path"`
	Nets []string `json:"nets"`
}

// LoadModels verifies the artifacts on disk and asks the sidecar to load them.
func (d *HTTPDetector) LoadModels(ctx context.Context) error {
	d.loaded.Store(false)

	if err := d.Models.Verify(); err != nil {
		return &DetectError{Detector: d.Name(), Op: "load models", Err: err}
	}

	b, _ := json.Marshal(loadRequest{Path: d.Models.Dir, Nets: d.Models.NetNames()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/models", bytes.NewReader(b))
	if err != nil {
		return &DetectError{Detector: d.Name(), Op: "load models", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &DetectError{Detector: d.Name(), Op: "load models", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &DetectError{
			Detector: d.Name(),
			Op:       "load models",
			Err:      fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	d.loaded.Store(true)
	return nil
}

type detectResponse struct {
	Faces []mood.Face `json:"faces"`
}

// DetectFrame posts the JPEG frame and decodes the detected faces.
func (d *HTTPDetector) DetectFrame(ctx context.Context, frame capture.Frame) ([]mood.Face, error) {
	if !d.loaded.Load() {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: ErrModelsNotLoaded}
	}
	if len(frame.Data) == 0 {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: ErrEmptyFrame}
	}

	q := url.Values{}
	q.Set("inputSize", strconv.Itoa(d.InputSize))
	q.Set("scoreThreshold", strconv.FormatFloat(d.ScoreThreshold, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/detect?"+q.Encode(), bytes.NewReader(frame.Data))
	if err != nil {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: err}
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &DetectError{
			Detector: d.Name(),
			Op:       "detect",
			Err:      fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: fmt.Errorf("decode: %w", err)}
	}
	return out.Faces, nil
}
