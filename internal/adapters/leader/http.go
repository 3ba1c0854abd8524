package leader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// HTTPElector asks a leader-election sidecar which pod leads and compares
// the answer with this pod's hostname.
type HTTPElector struct {
	url      string
	hostname string
	client   *http.Client
	logger   *slog.Logger
}

func NewHTTPElector(url string, timeout time.Duration, logger *slog.Logger) (*HTTPElector, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve hostname: %w", err)
	}
	return &HTTPElector{
		url:      url,
		hostname: hostname,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type electorResponse struct {
	Name string `json:"name"`
}

func (e *HTTPElector) IsLeader(ctx context.Context) bool {
	leader, err := e.currentLeader(ctx)
	if err != nil {
		e.logger.Warn("leader lookup failed", "url", e.url, "error", err)
		return false
	}
	return leader == e.hostname
}

func (e *HTTPElector) currentLeader(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elector returned status %d", resp.StatusCode)
	}

	var body electorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode elector response: %w", err)
	}
	return body.Name, nil
}

// StaticElector always gives the same answer. It serves single-instance deployments.
type StaticElector struct {
	leader bool
}

func NewStaticElector(leader bool) StaticElector {
	return StaticElector{leader: leader}
}

func (e StaticElector) IsLeader(context.Context) bool {
	return e.leader
}
