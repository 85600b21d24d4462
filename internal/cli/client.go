package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/api"
	"github.com/vigil-dev/vigil/internal/cliutil"
)

// defaultAPIAddr is where serve listens and where the client commands look
// for it.
const defaultAPIAddr = "127.0.0.1:7411"

// defaultClientTimeout bounds one control API request. Starting a service
// can sit on a readiness probe, so the bound is generous.
const defaultClientTimeout = 90 * time.Second

// apiClient is a thin JSON client for a running vigil serve instance.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := strings.TrimSpace(addr)
	if base == "" {
		base = defaultAPIAddr
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultClientTimeout},
	}
}

// apiError is a decoded control API error envelope.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("control API error %d (%s)", e.status, e.code)
}

func (c *apiClient) do(ctx stdcontext.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("control API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("control API returned status %d", resp.StatusCode)
		}
		return &apiError{
			status:  resp.StatusCode,
			code:    envelope.Error.Code,
			message: envelope.Error.Message,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode control API response: %w", err)
	}
	return nil
}

func (c *apiClient) status(ctx stdcontext.Context) (*api.StatusReport, error) {
	var report api.StatusReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *apiClient) startAll(ctx stdcontext.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/start", nil)
}

func (c *apiClient) stopAll(ctx stdcontext.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/stop", nil)
}

func (c *apiClient) startService(ctx stdcontext.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/services/"+url.PathEscape(name)+"/start", nil)
}

func (c *apiClient) stopService(ctx stdcontext.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/services/"+url.PathEscape(name)+"/stop", nil)
}

func (c *apiClient) reload(ctx stdcontext.Context) (*api.ReloadResult, error) {
	var body struct {
		Reload *api.ReloadResult `json:"reload"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/reload", &body); err != nil {
		return nil, err
	}
	if body.Reload == nil {
		return &api.ReloadResult{}, nil
	}
	return body.Reload, nil
}

func (c *apiClient) logs(ctx stdcontext.Context, tail int) ([]cliutil.LogRecord, error) {
	path := "/api/v1/logs"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var body struct {
		Logs []cliutil.LogRecord `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, path, &body); err != nil {
		return nil, err
	}
	return body.Logs, nil
}
