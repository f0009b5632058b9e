// Package quotes loads motivational quotes per mood and serves random picks.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/moodify/internal/mood"
)

// Fallback is returned whenever no quote is available for a mood.
const Fallback = "Vibes coming right up."

// maxDocumentSize caps the quotes document read from disk or network.
const maxDocumentSize = 4 * 1024 * 1024

// Store holds quotes keyed by mood. A store whose load failed is
// unavailable and answers every Get with Fallback.
type Store struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	source    string
	quotes    map[mood.Mood][]string
	available bool
	loadedAt  time.Time

	client *http.Client
	intn   func(n int) int
}

// NewStore creates an unavailable store reading from source, which is
// either a local path (.json, .yaml, .yml) or an http(s) URL.
func NewStore(source string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		source: source,
		client: &http.Client{Timeout: 10 * time.Second},
		intn:   rand.IntN,
	}
}

// Source returns the configured quotes location.
func (s *Store) Source() string {
	return s.source
}

// Load reads and parses the quotes document. Failures leave the store
// unavailable; they are logged at debug level and never surface to the user.
func (s *Store) Load(ctx context.Context) {
	quotes, err := s.read(ctx)
	if err != nil {
		s.logger.Debug("quotes unavailable", "source", s.source, "error", err)
		s.mu.Lock()
		s.quotes = nil
		s.available = false
		s.mu.Unlock()
		return
	}
	s.set(quotes)
}

// Reload re-reads the document, keeping the previous contents on failure.
func (s *Store) Reload(ctx context.Context) error {
	quotes, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.set(quotes)
	return nil
}

func (s *Store) set(quotes map[mood.Mood][]string) {
	s.mu.Lock()
	s.quotes = quotes
	s.available = true
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("quotes loaded", "source", s.source, "moods", len(quotes))
}

// Available reports whether the last load succeeded.
func (s *Store) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// LoadedAt returns when the store was last loaded successfully.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Count returns the number of quotes held for m.
func (s *Store) Count(m mood.Mood) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes[m])
}

// Get returns a random quote for m, or Fallback.
func (s *Store) Get(m mood.Mood) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return Fallback
	}
	list := s.quotes[m]
	if len(list) == 0 {
		return Fallback
	}
	return list[s.intn(len(list))]
}

// IsRemote reports whether the source is fetched over HTTP.
func (s *Store) IsRemote() bool {
	return isURL(s.source)
}

func (s *Store) read(ctx context.Context) (map[mood.Mood][]string, error) {
	if s.source == "" {
		return nil, fmt.Errorf("no quotes source configured")
	}

	var (
		data []byte
		err  error
	)
	if isURL(s.source) {
		data, err = s.fetch(ctx)
	} else {
		data, err = readFile(s.source)
	}
	if err != nil {
		return nil, err
	}

	return Parse(data, formatFor(s.source))
}

func (s *Store) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quotes: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open quotes file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, maxDocumentSize))
}

// Format is the encoding of a quotes document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func formatFor(source string) Format {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(source, "?", 2)[0]))
	if ext == ".yaml" || ext == ".yml" {
		return FormatYAML
	}
	return FormatJSON
}

// Parse decodes a mood -> []quote document. Unknown mood keys and blank
// quotes are dropped.
func Parse(data []byte, format Format) (map[mood.Mood][]string, error) {
	raw := make(map[string][]string)

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse quotes: %w", err)
	}

	out := make(map[mood.Mood][]string, len(raw))
	for name, list := range raw {
		m, err := mood.Parse(name)
		if err != nil {
			continue
		}
		for _, q := range list {
			if q = strings.TrimSpace(q); q != "" {
				out[m] = append(out[m], q)
			}
		}
	}
	return out, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
