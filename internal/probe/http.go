package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigil-dev/vigil/internal/config"
)

const httpAttemptTimeout = 2 * time.Second

type httpProber struct {
	client *http.Client
	url    string
}

func newHTTPProber(spec *config.HTTPProbeSpec) Prober {
	return &httpProber{
		client: &http.Client{Timeout: httpAttemptTimeout},
		url:    spec.URL,
	}
}

// Probe issues a GET and treats any status below 400 as ready.
func (p *httpProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return nil
}
