package novita

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/config"
	orcherrors "novita-orchestrator/pkg/errors"
	"novita-orchestrator/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Client is the typed upstream wrapper (C2): bearer auth, a circuit breaker
// that trips after consecutive failures (§4.2), and a token-bucket rate
// limiter gating steady-state throughput independent of the breaker.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	maxRetries int
}

// New builds an upstream client from loaded Novita config (§6).
func New(cfg *config.NovitaConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.novita.ai"
	}
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breakerSettings := gobreaker.Settings{
		Name:        "novita-upstream",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	maxRetries := cfg.MaxRetryAttempts
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(breakerSettings),
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		maxRetries: maxRetries,
	}
}

// doRequest executes a single HTTP call through the rate limiter and
// circuit breaker, returning the categorized error on any non-2xx status
// or transport failure (§4.2).
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindTimeout, err, "rate limiter wait cancelled")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.execute(ctx, method, path, body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, orcherrors.Wrap(orcherrors.KindServer, err, "upstream circuit breaker is open")
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) execute(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, orcherrors.Wrap(orcherrors.KindValidation, err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(payload)
		logger.Debugf("novita %s %s body=%s", method, path, logger.PrettyJSON(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindValidation, err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, categorizeTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindNetwork, err, "failed to read response body")
	}

	logger.Debugf("novita %s %s -> %d", method, path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		headers := map[string]string{"Retry-After": resp.Header.Get("Retry-After")}
		return nil, categorizeHTTPStatus(resp.StatusCode, respBody, headers)
	}
	return respBody, nil
}

// GetProducts issues GET /v1/products with the given filter (§4.2).
func (c *Client) GetProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	path := fmt.Sprintf("/v1/products?billingMethod=%s&productName=%s&region=%s",
		filter.BillingMethod, filter.ProductName, filter.Region)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp productsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindServer, err, "malformed products response")
	}
	products := make([]model.Product, 0, len(resp.Data))
	for _, w := range resp.Data {
		products = append(products, mapProduct(w, filter.Region))
	}
	return products, nil
}

// GetTemplate issues GET /v1/template?templateId=<id> (§4.2).
func (c *Client) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/template?templateId="+id, nil)
	if err != nil {
		return model.Template{}, err
	}
	var resp templateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Template{}, orcherrors.Wrap(orcherrors.KindServer, err, "malformed template response")
	}
	return mapTemplate(resp.Template), nil
}

// GetTemplateConfiguration resolves a template into the {imageUrl, ports,
// envs} shape C4 validates and returns (§4.4).
func (c *Client) GetTemplateConfiguration(ctx context.Context, id string) (model.TemplateConfiguration, error) {
	t, err := c.GetTemplate(ctx, id)
	if err != nil {
		return model.TemplateConfiguration{}, err
	}
	return templateToConfiguration(t), nil
}

// GetRegistryAuth issues GET /v1/repository/auths (§4.2, §6).
func (c *Client) GetRegistryAuth(ctx context.Context, id string) (model.RegistryAuth, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/repository/auths", nil)
	if err != nil {
		return model.RegistryAuth{}, err
	}
	var resp registryAuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.RegistryAuth{}, orcherrors.Wrap(orcherrors.KindServer, err, "malformed registry auth response")
	}
	for _, a := range resp.Data {
		if a.ID == id {
			return model.RegistryAuth{ID: a.ID, Username: a.Username, Password: a.Password}, nil
		}
	}
	return model.RegistryAuth{}, orcherrors.New(orcherrors.KindNotFound, "registry auth not found: "+id)
}

// CreateInstanceRequest is the resolved input to Client.CreateInstance.
type CreateInstanceRequest struct {
	Name        string
	ProductID   string
	GPUNum      int
	RootfsSize  int
	ImageURL    string
	ImageAuth   string
	Ports       []model.TemplatePort
	Envs        []model.EnvVar
	ClusterID   string
}

// CreateInstance issues POST /v1/gpu/instance/create (§4.2, §6).
func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) (string, error) {
	envs := make([]envVarWire, 0, len(req.Envs))
	for _, e := range req.Envs {
		envs = append(envs, envVarWire{Key: e.Key, Value: e.Value})
	}
	wire := createInstanceRequestWire{
		Name:        req.Name,
		ProductID:   req.ProductID,
		GPUNum:      gpuNumString(req.GPUNum),
		RootfsSize:  req.RootfsSize,
		ImageURL:    req.ImageURL,
		Kind:        "gpu",
		BillingMode: "spot",
		ImageAuth:   req.ImageAuth,
		Ports:       buildPortsString(req.Ports),
		Envs:        envs,
		ClusterID:   req.ClusterID,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/gpu/instance/create", wire)
	if err != nil {
		return "", err
	}
	var resp createInstanceResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", orcherrors.Wrap(orcherrors.KindServer, err, "malformed create instance response")
	}
	return resp.ID, nil
}

// StartInstance issues the upstream start call for an existing instance id.
func (c *Client) StartInstance(ctx context.Context, id string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/gpu/instance/start?instanceId="+id, nil)
	if err != nil {
		return "", err
	}
	var w instanceWire
	if err := json.Unmarshal(body, &w); err != nil {
		return "", orcherrors.Wrap(orcherrors.KindServer, err, "malformed start instance response")
	}
	return w.Status, nil
}

// UpstreamInstance is the internal-model-shaped view of a raw upstream
// instance, after mapInstance's translation (§4.2).
type UpstreamInstance struct {
	ID              string
	Status          string
	Region          string
	CreatedAt       time.Time
	Ports           []model.PortMapping
	SpotStatus      string
	SpotReclaimTime string
}

// GetInstance issues GET /v1/gpu/instance?instanceId=<id>; a 404 is
// authoritative per §3 invariant 6.
func (c *Client) GetInstance(ctx context.Context, id string) (UpstreamInstance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/gpu/instance?instanceId="+id, nil)
	if err != nil {
		return UpstreamInstance{}, err
	}
	var w instanceWire
	if err := json.Unmarshal(body, &w); err != nil {
		return UpstreamInstance{}, orcherrors.Wrap(orcherrors.KindServer, err, "malformed instance response")
	}
	status, region, createdAt, ports := mapInstance(w)
	return UpstreamInstance{
		ID:              w.ID,
		Status:          status,
		Region:          region,
		CreatedAt:       createdAt,
		Ports:           ports,
		SpotStatus:      w.SpotStatus,
		SpotReclaimTime: w.SpotReclaimTime,
	}, nil
}

// ListInstances issues GET /v1/gpu/instances?page&pageSize (§4.2, §6).
func (c *Client) ListInstances(ctx context.Context, page, pageSize int) ([]UpstreamInstance, error) {
	path := "/v1/gpu/instances?page=" + strconv.Itoa(page) + "&pageSize=" + strconv.Itoa(pageSize)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp listInstancesResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindServer, err, "malformed list instances response")
	}
	out := make([]UpstreamInstance, 0, len(resp.Data))
	for _, w := range resp.Data {
		status, region, createdAt, ports := mapInstance(w)
		out = append(out, UpstreamInstance{
			ID: w.ID, Status: status, Region: region, CreatedAt: createdAt, Ports: ports,
			SpotStatus: w.SpotStatus, SpotReclaimTime: w.SpotReclaimTime,
		})
	}
	return out, nil
}

// MigrateInstance issues POST /gpu-instance/openapi/v1/gpu/instance/migrate
// (§4.2, §6, §4.9).
func (c *Client) MigrateInstance(ctx context.Context, id string) (newID string, err error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/gpu-instance/openapi/v1/gpu/instance/migrate", migrateRequestWire{InstanceID: id})
	if err != nil {
		return "", err
	}
	var resp migrateResponseWire
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", orcherrors.Wrap(orcherrors.KindServer, err, "malformed migrate response")
	}
	if resp.Error != "" {
		return "", orcherrors.New(orcherrors.KindServer, resp.Error)
	}
	return resp.NewInstanceID, nil
}

// InstanceExists is a thin existence probe over GetInstance.
func (c *Client) InstanceExists(ctx context.Context, id string) (bool, error) {
	_, err := c.GetInstance(ctx, id)
	if err == nil {
		return true, nil
	}
	if kind, ok := orcherrors.KindOf(err); ok && kind == orcherrors.KindNotFound {
		return false, nil
	}
	return false, err
}

// HealthCheck probes upstream reachability for readiness endpoints.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/v1/gpu/instances?page=1&pageSize=1", nil)
	return err
}

// StartInstanceWithRetry retries only on RateLimitError, TimeoutError,
// NetworkError, and ServerError, sleeping baseDelay*2^(attempt-1)*jitter
// between attempts, per §4.2.
func (c *Client) StartInstanceWithRetry(ctx context.Context, id string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.maxRetries
	}
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := c.StartInstance(ctx, id)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if !orcherrors.Retryable(err) || attempt == maxAttempts {
			break
		}
		delay := time.Duration(float64(baseDelay) * pow2(attempt-1) * jitter())
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

func jitter() float64 {
	return 0.5 + rand.Float64()
}
