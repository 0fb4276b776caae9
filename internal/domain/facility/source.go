package facility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"gopkg.in/yaml.v3"
)

// Source loads the facility dataset.
type Source interface {
	Load(ctx context.Context) ([]Facility, error)
}

type format int

const (
	formatJSON format = iota
	formatYAML
)

// NewSource picks a source for location: an http(s) URL is fetched, anything
// else is read as a file. An empty location yields nil.
func NewSource(location string, client *http.Client) Source {
	switch {
	case location == "":
		return nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, client)
	default:
		return NewFileSource(location)
	}
}

// FileSource reads a JSON or YAML file on every Load.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) ([]Facility, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read facilities file: %w", err)
	}
	f := formatJSON
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		f = formatYAML
	}
	return decode(data, f)
}

// HTTPSource fetches the dataset from a URL behind a circuit breaker, so a
// dead upstream is skipped until the breaker half-opens.
type HTTPSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{
		url:    url,
		client: client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "facility-source",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (s *HTTPSource) Load(ctx context.Context) ([]Facility, error) {
	var contentType string
	body, err := s.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, application/yaml")
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		contentType = resp.Header.Get("Content-Type")
		return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	})
	if err != nil {
		return nil, fmt.Errorf("fetch facilities from %s: %w", s.url, err)
	}

	f := formatJSON
	if strings.Contains(contentType, "yaml") {
		f = formatYAML
	}
	return decode(body, f)
}

// decode accepts either a bare list of records or an object holding them
// under "locations". Any invalid record rejects the whole dataset.
func decode(data []byte, f format) ([]Facility, error) {
	unmarshal := json.Unmarshal
	if f == formatYAML {
		unmarshal = yaml.Unmarshal
	}

	var records []record
	if err := unmarshal(data, &records); err != nil {
		var wrapped struct {
			Locations []record `json:"locations" yaml:"locations"`
		}
		if err := unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode facilities: %w", err)
		}
		records = wrapped.Locations
	}

	out := make([]Facility, 0, len(records))
	var errs []error
	for _, r := range records {
		fac, err := r.facility()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, fac)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
