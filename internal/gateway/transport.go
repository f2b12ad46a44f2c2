package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Transport issues a single remote call and returns the decoded reply
// envelope. Implementations own connection management and timeouts.
type Transport interface {
	Invoke(ctx context.Context, service, method string, params []any) (any, error)
}

// HTTPTransport talks to the backend through its HTTP gateway
// translator: service, method and JSON-encoded params go out as form
// values, the reply comes back as a JSON envelope.
type HTTPTransport struct {
	baseURL  string
	username string
	password string
	client   *http.Client

	// One token bucket per backend service so a burst against one
	// service cannot starve the others.
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// HTTPTransportConfig configures the HTTP gateway client.
type HTTPTransportConfig struct {
	BaseURL string

	// Username and Password authenticate against the translator's
	// HTTP layer (basic auth). Empty username disables auth.
	Username string
	Password string

	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewHTTPTransport creates a transport for the gateway translator URL.
func NewHTTPTransport(cfg HTTPTransportConfig) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &HTTPTransport{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(cfg.RequestsPerSec),
		burst:    cfg.Burst,
	}, nil
}

func (t *HTTPTransport) limiter(service string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[service]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[service] = l
	}
	return l
}

// Invoke posts one call to the translator and decodes the envelope.
func (t *HTTPTransport) Invoke(ctx context.Context, service, method string, params []any) (any, error) {
	if err := t.limiter(service).Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("service", service)
	form.Set("method", method)
	for _, p := range params {
		encoded, err := json.MarshalToString(p)
		if err != nil {
			return nil, fmt.Errorf("encoding param: %w", err)
		}
		form.Add("param", encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/gateway", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s.%s: %w", service, method, ErrMethodNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var envelope any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding gateway reply: %w", err)
	}
	return envelope, nil
}
