// Package translate provides text translation through the public Google
// Translate web endpoint, plus a content-based language detection
// heuristic used when recognition cannot tell the languages apart.
package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Service translates text between language codes.
type Service struct {
	endpoint string
	client   *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithEndpoint overrides the translation endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// New creates a translation service. The timeout applies per request.
func New(timeout time.Duration, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Service{
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Translate translates text from source to target. Same-language requests
// return the input unchanged without touching the network.
func (s *Service) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == target {
		return text, nil
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "translate: build request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "translate: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("translate: unexpected status %d", resp.StatusCode)
	}

	var body []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "translate: decode response")
	}
	out, err := joinSegments(body)
	if err != nil {
		return "", err
	}
	if out == "" {
		return text, nil
	}
	return out, nil
}

// joinSegments extracts the translated sentence fragments from the nested
// array the gtx endpoint returns: [[["translated","original",...],...],...].
func joinSegments(body []json.RawMessage) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(body[0], &segments); err != nil {
		return "", errors.Wrap(err, "translate: decode segments")
	}
	var parts []string
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(seg[0], &piece); err != nil {
			continue
		}
		if piece != "" {
			parts = append(parts, piece)
		}
	}
	return strings.Join(parts, " "), nil
}
