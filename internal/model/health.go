package model

import "time"

// EndpointType is the probe protocol for a port mapping.
type EndpointType string

const (
	EndpointHTTP  EndpointType = "http"
	EndpointHTTPS EndpointType = "https"
	EndpointTCP   EndpointType = "tcp"
	EndpointUDP   EndpointType = "udp"
)

// OverallHealthStatus is the aggregate result of a health check run (§4.5).
type OverallHealthStatus string

const (
	HealthHealthy   OverallHealthStatus = "healthy"
	HealthPartial   OverallHealthStatus = "partial"
	HealthUnhealthy OverallHealthStatus = "unhealthy"
)

// EndpointHealthStatus is per-endpoint health (§3).
type EndpointHealthStatus string

const (
	EndpointHealthy   EndpointHealthStatus = "healthy"
	EndpointUnhealthy EndpointHealthStatus = "unhealthy"
)

// HealthCheckConfig configures a performHealthChecks call (§4.5).
type HealthCheckConfig struct {
	TimeoutMs     int64 `json:"timeoutMs"`
	RetryAttempts int   `json:"retryAttempts"`
	RetryDelayMs  int64 `json:"retryDelayMs"`
	MaxWaitTimeMs int64 `json:"maxWaitTimeMs"`
	TargetPort    int   `json:"targetPort,omitempty"`
}

// DefaultHealthCheckConfig mirrors §4.5's documented defaults.
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		TimeoutMs:     10000,
		RetryAttempts: 3,
		RetryDelayMs:  2000,
		MaxWaitTimeMs: 300000,
	}
}

// EndpointHealthResult is a single endpoint's probe outcome.
type EndpointHealthResult struct {
	Port         int                  `json:"port"`
	Endpoint     string               `json:"endpoint"`
	Type         EndpointType         `json:"type"`
	Status       EndpointHealthStatus `json:"status"`
	ResponseTime int64                `json:"responseTime"`
	LastChecked  time.Time            `json:"lastChecked"`
	Error        string               `json:"error,omitempty"`
}

// HealthCheckResult is the full aggregate result of one performHealthChecks
// invocation (§3, §4.5).
type HealthCheckResult struct {
	OverallStatus     OverallHealthStatus     `json:"overallStatus"`
	Endpoints         []EndpointHealthResult  `json:"endpoints"`
	CheckedAt         time.Time               `json:"checkedAt"`
	TotalResponseTime int64                   `json:"totalResponseTime"`
}

// FailureKind is the §4.5.1 health-check error taxonomy.
type FailureKind string

const (
	FailureTimeout              FailureKind = "TIMEOUT"
	FailureConnectionRefused    FailureKind = "CONNECTION_REFUSED"
	FailureConnectionReset      FailureKind = "CONNECTION_RESET"
	FailureDNSResolutionFailed  FailureKind = "DNS_RESOLUTION_FAILED"
	FailureNetworkUnreachable   FailureKind = "NETWORK_UNREACHABLE"
	FailureBadGateway           FailureKind = "BAD_GATEWAY"
	FailureServiceUnavailable   FailureKind = "SERVICE_UNAVAILABLE"
	FailureServerError          FailureKind = "SERVER_ERROR"
	FailureClientError          FailureKind = "CLIENT_ERROR"
	FailureSSLError             FailureKind = "SSL_ERROR"
	FailureInvalidResponse      FailureKind = "INVALID_RESPONSE"
	FailureUnknown              FailureKind = "UNKNOWN"
)

// Severity ranks a FailureKind for alerting/logging purposes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// failureTaxonomy is the §4.5.1 table.
var failureTaxonomy = map[FailureKind]struct {
	Retryable bool
	Severity  Severity
}{
	FailureTimeout:             {true, SeverityMedium},
	FailureConnectionRefused:   {true, SeverityMedium},
	FailureConnectionReset:     {true, SeverityMedium},
	FailureDNSResolutionFailed: {true, SeverityHigh},
	FailureNetworkUnreachable:  {true, SeverityHigh},
	FailureBadGateway:          {true, SeverityMedium},
	FailureServiceUnavailable:  {true, SeverityMedium},
	FailureServerError:         {true, SeverityMedium},
	FailureClientError:         {false, SeverityLow},
	FailureSSLError:            {false, SeverityCritical},
	FailureInvalidResponse:     {false, SeverityMedium},
	FailureUnknown:             {false, SeverityMedium},
}

// Retryable reports whether a probe failure of this kind should be retried.
func (k FailureKind) Retryable() bool {
	return failureTaxonomy[k].Retryable
}

// SeverityLevel reports the configured severity for this failure kind.
func (k FailureKind) SeverityLevel() Severity {
	if v, ok := failureTaxonomy[k]; ok {
		return v.Severity
	}
	return SeverityMedium
}
