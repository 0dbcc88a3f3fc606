// Package status converts the raw error taxonomy in pkg/errors into
// user-facing {userMessage, suggestion, errorCode} triples for any surface
// that crosses the trust boundary (HTTP responses, webhook error fields),
// stripping upstream internals along the way.
package status

import (
	"regexp"
	"strings"

	orcherrors "novita-orchestrator/pkg/errors"
)

// Sanitizer maps error Kinds (plus a provider-specific reason string) to
// user-friendly messages and redacts sensitive substrings from anything
// that might otherwise leak upstream internals.
type Sanitizer struct {
	mappings          map[orcherrors.Kind]map[string]SanitizedError
	sensitivePatterns []*sensitivePattern
}

// SanitizedError is the user-facing shape of an internal error.
type SanitizedError struct {
	UserMessage string `json:"userMessage"`
	Suggestion  string `json:"suggestion"`
	ErrorCode   string `json:"errorCode"`
}

type sensitivePattern struct {
	pattern     *regexp.Regexp
	replacement string
	description string
}

const defaultKey = "default"

// ValidationErrorMappings covers §7's ValidationError kind.
var ValidationErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The request could not be processed because one or more fields were invalid",
		Suggestion:  "Check gpuNum, rootfsSize, webhookUrl and the other required fields against the documented ranges",
		ErrorCode:   "VALIDATION_FAILED",
	},
}

// NotFoundErrorMappings covers §7's NotFoundError kind.
var NotFoundErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The requested instance, product, or template could not be found",
		Suggestion:  "Verify the id and that the resource has not already been removed",
		ErrorCode:   "NOT_FOUND",
	},
}

// AuthenticationErrorMappings covers §7's AuthenticationError kind.
var AuthenticationErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The upstream provider rejected the request's credentials",
		Suggestion:  "This is an operator-side configuration issue; contact support if it persists",
		ErrorCode:   "UPSTREAM_AUTH_FAILED",
	},
}

// RateLimitErrorMappings covers §7's RateLimitError kind.
var RateLimitErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The upstream provider is rate-limiting requests",
		Suggestion:  "Wait for the indicated retry period before trying again",
		ErrorCode:   "UPSTREAM_RATE_LIMITED",
	},
}

// TimeoutErrorMappings covers §7's TimeoutError kind.
var TimeoutErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The operation timed out before completing",
		Suggestion:  "Retry the request; if it keeps timing out, the instance or upstream provider may be degraded",
		ErrorCode:   "TIMEOUT",
	},
}

// NetworkErrorMappings covers §7's NetworkError kind.
var NetworkErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "A network connectivity problem prevented the request from completing",
		Suggestion:  "Retry shortly; if the problem persists, the upstream provider may be unreachable",
		ErrorCode:   "NETWORK_ERROR",
	},
}

// ServerErrorMappings covers §7's ServerError kind.
var ServerErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The upstream provider returned an internal error",
		Suggestion:  "Retry later; this is not caused by anything in the request",
		ErrorCode:   "UPSTREAM_SERVER_ERROR",
	},
}

// ResourceConstraintsErrorMappings covers §7's ResourceConstraintsError kind.
var ResourceConstraintsErrorMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "No GPU capacity is currently available for the requested product and region",
		Suggestion:  "Try a different region, product, or retry later as capacity frees up",
		ErrorCode:   "OUT_OF_CAPACITY",
	},
}

// InstanceNotStartableMappings covers §7's InstanceNotStartable kind.
var InstanceNotStartableMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The instance cannot be started from its current state",
		Suggestion:  "Only instances in the 'exited' state can be restarted",
		ErrorCode:   "INSTANCE_NOT_STARTABLE",
	},
}

// StartupOperationInProgressMappings covers §7's StartupOperationInProgress kind.
var StartupOperationInProgressMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "A start request for this instance is already in progress",
		Suggestion:  "Wait for the in-flight start operation to complete before retrying",
		ErrorCode:   "STARTUP_IN_PROGRESS",
	},
}

// StartupFailedMappings covers §7's StartupFailedError kind.
var StartupFailedMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The instance failed to start",
		Suggestion:  "Check the instance's last error and retry the start request",
		ErrorCode:   "STARTUP_FAILED",
	},
}

// HealthCheckFailedMappings covers §7's HealthCheckFailedError kind.
var HealthCheckFailedMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "The instance did not pass health checks within the allotted time",
		Suggestion:  "Check that the workload listens on the configured ports and responds within the configured timeout",
		ErrorCode:   "HEALTH_CHECK_FAILED",
	},
}

// UnknownMappings is the last-resort fallback for an unrecognized Kind.
var UnknownMappings = map[string]SanitizedError{
	defaultKey: {
		UserMessage: "An unexpected error occurred",
		Suggestion:  "Retry the request; contact support if the problem persists",
		ErrorCode:   "UNKNOWN_ERROR",
	},
}

// NewSanitizer wires every mapping table above into the taxonomy.
func NewSanitizer() *Sanitizer {
	s := &Sanitizer{
		mappings: map[orcherrors.Kind]map[string]SanitizedError{
			orcherrors.KindValidation:                ValidationErrorMappings,
			orcherrors.KindNotFound:                  NotFoundErrorMappings,
			orcherrors.KindAuthentication:             AuthenticationErrorMappings,
			orcherrors.KindRateLimit:                 RateLimitErrorMappings,
			orcherrors.KindTimeout:                   TimeoutErrorMappings,
			orcherrors.KindNetwork:                   NetworkErrorMappings,
			orcherrors.KindServer:                    ServerErrorMappings,
			orcherrors.KindResourceConstraints:       ResourceConstraintsErrorMappings,
			orcherrors.KindInstanceNotStartable:      InstanceNotStartableMappings,
			orcherrors.KindStartupOperationInProgress: StartupOperationInProgressMappings,
			orcherrors.KindStartupFailed:             StartupFailedMappings,
			orcherrors.KindHealthCheckFailed:         HealthCheckFailedMappings,
		},
		sensitivePatterns: buildDefaultSensitivePatterns(),
	}
	return s
}

// Sanitize resolves kind+reason to a SanitizedError: exact reason match,
// then case-insensitive match, then the kind's "default" entry, then the
// absolute fallback.
func (s *Sanitizer) Sanitize(kind orcherrors.Kind, reason string) SanitizedError {
	table, ok := s.mappings[kind]
	if !ok {
		table = UnknownMappings
	}

	if reason != "" {
		if se, ok := table[reason]; ok {
			return se
		}
		lower := strings.ToLower(reason)
		for k, se := range table {
			if strings.ToLower(k) == lower {
				return se
			}
		}
		for k, se := range table {
			if k != defaultKey && strings.Contains(lower, strings.ToLower(k)) {
				return se
			}
		}
	}

	if se, ok := table[defaultKey]; ok {
		return se
	}
	return UnknownMappings[defaultKey]
}

// SanitizeError is a convenience wrapper that extracts Kind and message from
// an *orcherrors.Error (or falls back to KindServer for a plain error).
func (s *Sanitizer) SanitizeError(err error) SanitizedError {
	kind, ok := orcherrors.KindOf(err)
	if !ok {
		kind = orcherrors.KindServer
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.Sanitize(kind, msg)
}

// SanitizeSensitiveInfo strips internal hostnames, credentials, and
// addresses from a message before it is logged or returned to a caller.
func (s *Sanitizer) SanitizeSensitiveInfo(message string) string {
	out := message
	for _, p := range s.sensitivePatterns {
		out = p.pattern.ReplaceAllString(out, p.replacement)
	}
	return out
}

// AddMapping lets callers register provider-specific reason strings at
// runtime without forking the static tables above.
func (s *Sanitizer) AddMapping(kind orcherrors.Kind, reason string, se SanitizedError) {
	if s.mappings[kind] == nil {
		s.mappings[kind] = map[string]SanitizedError{}
	}
	s.mappings[kind][reason] = se
}

func buildDefaultSensitivePatterns() []*sensitivePattern {
	return []*sensitivePattern{
		{
			pattern:     regexp.MustCompile(`\b(?:10\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`),
			replacement: "[internal-ip]",
			description: "RFC1918 10.x address",
		},
		{
			pattern:     regexp.MustCompile(`\b(?:192\.168\.\d{1,3}\.\d{1,3})\b`),
			replacement: "[internal-ip]",
			description: "RFC1918 192.168.x address",
		},
		{
			pattern:     regexp.MustCompile(`\b(?:172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3})\b`),
			replacement: "[internal-ip]",
			description: "RFC1918 172.16-31.x address",
		},
		{
			pattern:     regexp.MustCompile(`(?i)(authorization|api[_-]?key|bearer)\s*[:=]\s*(?:bearer\s+)?\S+`),
			replacement: "$1: [redacted]",
			description: "credential-bearing header or field",
		},
		{
			pattern:     regexp.MustCompile(`https?://[^\s/]+\.(?:internal|local|svc\.cluster\.local)\S*`),
			replacement: "[internal-url]",
			description: "internal hostname URL",
		},
	}
}
