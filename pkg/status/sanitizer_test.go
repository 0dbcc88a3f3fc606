package status

import (
	"errors"
	"strings"
	"testing"

	orcherrors "novita-orchestrator/pkg/errors"
)

func TestSanitize_DefaultMappingPerKind(t *testing.T) {
	sanitizer := NewSanitizer()

	cases := []struct {
		name      string
		kind      orcherrors.Kind
		errorCode string
	}{
		{"validation", orcherrors.KindValidation, "VALIDATION_FAILED"},
		{"not found", orcherrors.KindNotFound, "NOT_FOUND"},
		{"authentication", orcherrors.KindAuthentication, "UPSTREAM_AUTH_FAILED"},
		{"rate limit", orcherrors.KindRateLimit, "UPSTREAM_RATE_LIMITED"},
		{"timeout", orcherrors.KindTimeout, "TIMEOUT"},
		{"network", orcherrors.KindNetwork, "NETWORK_ERROR"},
		{"server", orcherrors.KindServer, "UPSTREAM_SERVER_ERROR"},
		{"resource constraints", orcherrors.KindResourceConstraints, "OUT_OF_CAPACITY"},
		{"instance not startable", orcherrors.KindInstanceNotStartable, "INSTANCE_NOT_STARTABLE"},
		{"startup operation in progress", orcherrors.KindStartupOperationInProgress, "STARTUP_IN_PROGRESS"},
		{"startup failed", orcherrors.KindStartupFailed, "STARTUP_FAILED"},
		{"health check failed", orcherrors.KindHealthCheckFailed, "HEALTH_CHECK_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := sanitizer.Sanitize(tc.kind, "")
			if se.ErrorCode != tc.errorCode {
				t.Errorf("Sanitize(%s, \"\") errorCode = %q, want %q", tc.kind, se.ErrorCode, tc.errorCode)
			}
			if se.UserMessage == "" {
				t.Error("expected a non-empty user message")
			}
			if se.Suggestion == "" {
				t.Error("expected a non-empty suggestion")
			}
		})
	}
}

func TestSanitize_UnknownKindFallsBackToUnknownMappings(t *testing.T) {
	sanitizer := NewSanitizer()

	se := sanitizer.Sanitize(orcherrors.Kind("NotARealKind"), "whatever")
	if se.ErrorCode != "UNKNOWN_ERROR" {
		t.Errorf("errorCode = %q, want UNKNOWN_ERROR", se.ErrorCode)
	}
}

func TestSanitize_ExactReasonMatchWinsOverDefault(t *testing.T) {
	sanitizer := NewSanitizer()
	sanitizer.AddMapping(orcherrors.KindValidation, "rootfsSize too small", SanitizedError{
		UserMessage: "rootfsSize must be at least 20Gi",
		Suggestion:  "Increase rootfsSize and retry",
		ErrorCode:   "ROOTFS_TOO_SMALL",
	})

	se := sanitizer.Sanitize(orcherrors.KindValidation, "rootfsSize too small")
	if se.ErrorCode != "ROOTFS_TOO_SMALL" {
		t.Errorf("errorCode = %q, want ROOTFS_TOO_SMALL", se.ErrorCode)
	}
}

func TestSanitize_CaseInsensitiveReasonMatch(t *testing.T) {
	sanitizer := NewSanitizer()
	sanitizer.AddMapping(orcherrors.KindTimeout, "DeadlineExceeded", SanitizedError{
		UserMessage: "deadline exceeded waiting on upstream",
		Suggestion:  "retry",
		ErrorCode:   "DEADLINE_EXCEEDED",
	})

	se := sanitizer.Sanitize(orcherrors.KindTimeout, "deadlineexceeded")
	if se.ErrorCode != "DEADLINE_EXCEEDED" {
		t.Errorf("errorCode = %q, want DEADLINE_EXCEEDED", se.ErrorCode)
	}
}

func TestSanitize_SubstringReasonMatch(t *testing.T) {
	sanitizer := NewSanitizer()
	sanitizer.AddMapping(orcherrors.KindNetwork, "connection reset", SanitizedError{
		UserMessage: "the connection to the upstream provider was reset",
		Suggestion:  "retry shortly",
		ErrorCode:   "CONN_RESET",
	})

	se := sanitizer.Sanitize(orcherrors.KindNetwork, "read tcp 10.0.0.1:443: connection reset by peer")
	if se.ErrorCode != "CONN_RESET" {
		t.Errorf("errorCode = %q, want CONN_RESET", se.ErrorCode)
	}
}

func TestSanitize_UnmatchedReasonFallsBackToKindDefault(t *testing.T) {
	sanitizer := NewSanitizer()

	se := sanitizer.Sanitize(orcherrors.KindNotFound, "something nobody registered")
	if se.ErrorCode != "NOT_FOUND" {
		t.Errorf("errorCode = %q, want NOT_FOUND", se.ErrorCode)
	}
}

func TestSanitizeError_ExtractsKindFromTypedError(t *testing.T) {
	sanitizer := NewSanitizer()

	err := orcherrors.New(orcherrors.KindRateLimit, "too many requests")
	se := sanitizer.SanitizeError(err)
	if se.ErrorCode != "UPSTREAM_RATE_LIMITED" {
		t.Errorf("errorCode = %q, want UPSTREAM_RATE_LIMITED", se.ErrorCode)
	}
}

func TestSanitizeError_PlainErrorFallsBackToServerKind(t *testing.T) {
	sanitizer := NewSanitizer()

	se := sanitizer.SanitizeError(errors.New("connection refused"))
	if se.ErrorCode != "UPSTREAM_SERVER_ERROR" {
		t.Errorf("errorCode = %q, want UPSTREAM_SERVER_ERROR", se.ErrorCode)
	}
}

func TestSanitizeError_NilErrorFallsBackToServerKind(t *testing.T) {
	sanitizer := NewSanitizer()

	se := sanitizer.SanitizeError(nil)
	if se.ErrorCode != "UPSTREAM_SERVER_ERROR" {
		t.Errorf("errorCode = %q, want UPSTREAM_SERVER_ERROR", se.ErrorCode)
	}
}

func TestSanitizeSensitiveInfo_RedactsInternalIPs(t *testing.T) {
	sanitizer := NewSanitizer()

	cases := []string{
		"dial tcp 10.1.2.3:8080: connect: connection refused",
		"dial tcp 192.168.1.1:8080: connect: connection refused",
		"dial tcp 172.16.5.5:8080: connect: connection refused",
	}
	for _, msg := range cases {
		out := sanitizer.SanitizeSensitiveInfo(msg)
		if strings.Contains(out, "10.1.2.3") || strings.Contains(out, "192.168.1.1") || strings.Contains(out, "172.16.5.5") {
			t.Errorf("SanitizeSensitiveInfo(%q) = %q, still contains an internal IP", msg, out)
		}
		if !strings.Contains(out, "[internal-ip]") {
			t.Errorf("SanitizeSensitiveInfo(%q) = %q, expected [internal-ip] placeholder", msg, out)
		}
	}
}

func TestSanitizeSensitiveInfo_RedactsCredentials(t *testing.T) {
	sanitizer := NewSanitizer()

	out := sanitizer.SanitizeSensitiveInfo("upstream call failed: Authorization: Bearer sk-abc123xyz")
	if strings.Contains(out, "sk-abc123xyz") {
		t.Errorf("expected credential to be redacted, got %q", out)
	}
	if !strings.Contains(out, "[redacted]") {
		t.Errorf("expected [redacted] placeholder, got %q", out)
	}
}

func TestSanitizeSensitiveInfo_RedactsInternalURLs(t *testing.T) {
	sanitizer := NewSanitizer()

	out := sanitizer.SanitizeSensitiveInfo("health probe to http://instance-7.novita.svc.cluster.local/healthz failed")
	if strings.Contains(out, "svc.cluster.local") {
		t.Errorf("expected internal URL to be redacted, got %q", out)
	}
	if !strings.Contains(out, "[internal-url]") {
		t.Errorf("expected [internal-url] placeholder, got %q", out)
	}
}

func TestSanitizeSensitiveInfo_LeavesPlainMessagesUntouched(t *testing.T) {
	sanitizer := NewSanitizer()

	msg := "the instance failed to report ready within the configured window"
	if out := sanitizer.SanitizeSensitiveInfo(msg); out != msg {
		t.Errorf("expected message to be left unchanged, got %q", out)
	}
}

func TestAddMapping_CreatesTableForNewKind(t *testing.T) {
	sanitizer := &Sanitizer{mappings: map[orcherrors.Kind]map[string]SanitizedError{}}

	sanitizer.AddMapping(orcherrors.KindClient, "bad request body", SanitizedError{
		UserMessage: "the request body could not be parsed",
		ErrorCode:   "BAD_BODY",
	})

	se := sanitizer.Sanitize(orcherrors.KindClient, "bad request body")
	if se.ErrorCode != "BAD_BODY" {
		t.Errorf("errorCode = %q, want BAD_BODY", se.ErrorCode)
	}
}
