package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultWeightsURL is where the face-api.js weights are published.
const DefaultWeightsURL = "https://raw.githubusercontent.com/justadudewhohacks/face-api.js/master/weights"

// Net names a pre-trained model set.
type Net struct {
	Name     string // network identifier understood by the inference backend
	Manifest string // weights manifest file
	Shards   []string
}

// RequiredNets are the two model sets detection needs.
var RequiredNets = []Net{
	{
		Name:     "tinyFaceDetector",
		Manifest: "tiny_face_detector_model-weights_manifest.json",
		Shards:   []string{"tiny_face_detector_model-shard1"},
	},
	{
		Name:     "faceExpressionNet",
		Manifest: "face_expression_model-weights_manifest.json",
		Shards:   []string{"face_expression_model-shard1"},
	},
}

// ModelSet is the local directory holding the model artifacts.
type ModelSet struct {
	Dir    string
	Nets   []Net
	logger *slog.Logger
}

// NewModelSet creates a model set for dir with the required nets.
func NewModelSet(dir string, logger *slog.Logger) *ModelSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSet{Dir: dir, Nets: RequiredNets, logger: logger}
}

// NetNames returns the network identifiers in the set.
func (m *ModelSet) NetNames() []string {
	names := make([]string, len(m.Nets))
	for i, n := range m.Nets {
		names[i] = n.Name
	}
	return names
}

// Files returns every artifact file name, manifests first per net.
func (m *ModelSet) Files() []string {
	var files []string
	for _, n := range m.Nets {
		files = append(files, n.Manifest)
		files = append(files, n.Shards...)
	}
	return files
}

// manifestGroup is one entry of a tfjs weights manifest.
type manifestGroup struct {
	Paths   []string `json:"paths"`
	Weights []struct {
		Name  string `json:"name"`
		Shape []int  `json:"shape"`
		Dtype string `json:"dtype"`
	} `json:"weights"`
}

// ArtifactStatus describes one artifact file on disk.
type ArtifactStatus struct {
	Name    string
	Path    string
	Size    int64
	Present bool
	Err     error
}

// Check stats every artifact without parsing.
func (m *ModelSet) Check() []ArtifactStatus {
	var out []ArtifactStatus
	for _, name := range m.Files() {
		path := filepath.Join(m.Dir, name)
		st := ArtifactStatus{Name: name, Path: path}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			st.Err = err
		case info.Size() == 0:
			st.Err = errors.New("empty file")
		default:
			st.Present = true
			st.Size = info.Size()
		}
		out = append(out, st)
	}
	return out
}

// Verify checks that every manifest parses and every shard it references exists.
func (m *ModelSet) Verify() error {
	if m.Dir == "" {
		return errors.New("no models directory configured")
	}

	for _, n := range m.Nets {
		data, err := os.ReadFile(filepath.Join(m.Dir, n.Manifest))
		if err != nil {
			return fmt.Errorf("%s: %w", n.Name, err)
		}

		var groups []manifestGroup
		if err := json.Unmarshal(data, &groups); err != nil {
			return fmt.Errorf("%s: invalid manifest: %w", n.Name, err)
		}
		if len(groups) == 0 {
			return fmt.Errorf("%s: manifest lists no weights", n.Name)
		}

		for _, g := range groups {
			for _, p := range g.Paths {
				info, err := os.Stat(filepath.Join(m.Dir, p))
				if err != nil {
					return fmt.Errorf("%s: %w", n.Name, err)
				}
				if info.Size() == 0 {
					return fmt.Errorf("%s: shard %s is empty", n.Name, p)
				}
			}
		}
	}
	return nil
}

// Fetch downloads every artifact from baseURL into Dir, replacing files atomically.
func (m *ModelSet) Fetch(ctx context.Context, baseURL string, progress func(name string, size int64)) error {
	if baseURL == "" {
		baseURL = DefaultWeightsURL
	}
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	for _, name := range m.Files() {
		size, err := m.download(ctx, client, baseURL+"/"+name, filepath.Join(m.Dir, name))
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
		m.logger.Debug("downloaded model artifact", "name", name, "size", size)
		if progress != nil {
			progress(name, size)
		}
	}
	return nil
}

func (m *ModelSet) download(ctx context.Context, client *http.Client, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	return n, os.Rename(tmp, dest)
}
