// Package health implements the Health Checker (C5): concurrent per-port
// HTTP probing with the §4.5.1 failure taxonomy and exponential backoff
// retry, following the common polling + failure-classification pattern,
// generalized from single-endpoint status polling to concurrent
// multi-port probing.
package health

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"
)

// Checker runs performHealthChecks over a set of port mappings.
type Checker struct {
	client *http.Client
}

// New builds a Checker with a dedicated client that never follows
// redirects, per §4.5's probe contract.
func New() *Checker {
	return &Checker{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// PerformHealthChecks implements §4.5's algorithm end to end.
func (c *Checker) PerformHealthChecks(ctx context.Context, portMappings []model.PortMapping, cfg model.HealthCheckConfig) model.HealthCheckResult {
	if cfg.TimeoutMs == 0 {
		cfg = model.DefaultHealthCheckConfig()
	}

	mappings := portMappings
	if cfg.TargetPort != 0 {
		mappings = filterByPort(portMappings, cfg.TargetPort)
	}

	if len(mappings) == 0 {
		return model.HealthCheckResult{
			OverallStatus:     model.HealthUnhealthy,
			Endpoints:         []model.EndpointHealthResult{},
			CheckedAt:         nowUTC(ctx),
			TotalResponseTime: 0,
		}
	}

	results := make([]model.EndpointHealthResult, len(mappings))
	var wg sync.WaitGroup
	for i, m := range mappings {
		wg.Add(1)
		go func(i int, m model.PortMapping) {
			defer wg.Done()
			results[i] = c.probeWithRetry(ctx, m, cfg)
		}(i, m)
	}
	wg.Wait()

	return aggregate(results, ctx)
}

func filterByPort(mappings []model.PortMapping, targetPort int) []model.PortMapping {
	out := make([]model.PortMapping, 0, 1)
	for _, m := range mappings {
		if m.Port == targetPort {
			out = append(out, m)
		}
	}
	return out
}

func aggregate(results []model.EndpointHealthResult, ctx context.Context) model.HealthCheckResult {
	var total int64
	healthyCount := 0
	for _, r := range results {
		if r.Status == model.EndpointHealthy {
			healthyCount++
			total += r.ResponseTime
		}
	}

	overall := model.HealthPartial
	switch {
	case healthyCount == len(results):
		overall = model.HealthHealthy
	case healthyCount == 0:
		overall = model.HealthUnhealthy
	}

	return model.HealthCheckResult{
		OverallStatus:     overall,
		Endpoints:         results,
		CheckedAt:         nowUTC(ctx),
		TotalResponseTime: total,
	}
}

// probeWithRetry issues the GET, classifying and retrying per §4.5/§4.5.1.
func (c *Checker) probeWithRetry(ctx context.Context, m model.PortMapping, cfg model.HealthCheckConfig) model.EndpointHealthResult {
	maxAttempts := cfg.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var last model.EndpointHealthResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = c.probeOnce(ctx, m, cfg)
		if last.Status == model.EndpointHealthy {
			return last
		}
		kind := classifyErrorString(last.Error)
		if !kind.Retryable() || attempt == maxAttempts {
			break
		}
		delay := time.Duration(float64(cfg.RetryDelayMs) * 1e6 * pow2(attempt-1) * jitter())
		select {
		case <-ctx.Done():
			return last
		case <-time.After(delay):
		}
	}
	return last
}

func (c *Checker) probeOnce(ctx context.Context, m model.PortMapping, cfg model.HealthCheckConfig) model.EndpointHealthResult {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	result := model.EndpointHealthResult{
		Port:        m.Port,
		Endpoint:    m.Endpoint,
		Type:        model.EndpointType(m.Type),
		LastChecked: nowUTC(ctx),
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.Endpoint, nil)
	if err != nil {
		result.Status = model.EndpointUnhealthy
		result.Error = string(model.FailureInvalidResponse) + ": " + err.Error()
		return result
	}
	req.Header.Set("User-Agent", "HealthChecker/1.0")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "close")
	req.Header.Set("X-Health-Check", "true")

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		result.Status = model.EndpointUnhealthy
		kind := classifyTransportError(err)
		result.Error = string(kind) + ": " + err.Error()
		logger.Warnf("health probe failed port=%d endpoint=%s kind=%s", m.Port, m.Endpoint, kind)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 399 {
		result.Status = model.EndpointHealthy
		result.ResponseTime = elapsed
		return result
	}

	result.Status = model.EndpointUnhealthy
	kind := classifyStatus(resp.StatusCode)
	result.Error = string(kind)
	return result
}

func classifyStatus(status int) model.FailureKind {
	switch {
	case status == http.StatusBadGateway:
		return model.FailureBadGateway
	case status == http.StatusServiceUnavailable:
		return model.FailureServiceUnavailable
	case status >= 500:
		return model.FailureServerError
	case status >= 400:
		return model.FailureClientError
	default:
		return model.FailureUnknown
	}
}

func classifyTransportError(err error) model.FailureKind {
	if err == nil {
		return model.FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.FailureDNSResolutionFailed
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) || strings.Contains(err.Error(), "x509") || strings.Contains(err.Error(), "certificate") {
		return model.FailureSSLError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		msg := opErr.Error()
		switch {
		case strings.Contains(msg, "connection refused"):
			return model.FailureConnectionRefused
		case strings.Contains(msg, "connection reset"):
			return model.FailureConnectionReset
		case strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "no route to host"):
			return model.FailureNetworkUnreachable
		}
	}
	if strings.Contains(err.Error(), "connection refused") {
		return model.FailureConnectionRefused
	}
	if strings.Contains(err.Error(), "connection reset") {
		return model.FailureConnectionReset
	}
	return model.FailureUnknown
}

// classifyErrorString recovers the FailureKind previously stamped into
// result.Error, so probeWithRetry can decide retryability without
// re-running classification against the original error value.
func classifyErrorString(s string) model.FailureKind {
	for kind := range map[model.FailureKind]struct{}{
		model.FailureTimeout: {}, model.FailureConnectionRefused: {}, model.FailureConnectionReset: {},
		model.FailureDNSResolutionFailed: {}, model.FailureNetworkUnreachable: {}, model.FailureBadGateway: {},
		model.FailureServiceUnavailable: {}, model.FailureServerError: {}, model.FailureClientError: {},
		model.FailureSSLError: {}, model.FailureInvalidResponse: {}, model.FailureUnknown: {},
	} {
		if strings.HasPrefix(s, string(kind)) {
			return kind
		}
	}
	return model.FailureUnknown
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

func nowUTC(ctx context.Context) time.Time {
	return time.Now().UTC()
}
