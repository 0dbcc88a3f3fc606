// Property-based tests verifying sanitization holds across a wide range of
// generated inputs, not just the hand-picked cases in sanitizer_test.go.
package status

import (
	"fmt"
	"strings"
	"testing"

	orcherrors "novita-orchestrator/pkg/errors"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_SanitizeSensitiveInfoRemovesInternalIPs checks that every
// generated message embedding an RFC1918 address comes back without it.
func TestProperty_SanitizeSensitiveInfoRemovesInternalIPs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)
	sanitizer := NewSanitizer()

	properties.Property("10.x addresses are always redacted", prop.ForAll(
		func(a, b, c, prefix, suffix string) bool {
			octetA := (len(a) % 200) + 1
			octetB := (len(b) % 256)
			octetC := (len(c) % 256)
			ip := fmt.Sprintf("10.%d.%d.%d", octetA%200, octetB, octetC)
			msg := prefix + " " + ip + " " + suffix

			out := sanitizer.SanitizeSensitiveInfo(msg)
			return !strings.Contains(out, ip)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("192.168.x addresses are always redacted", prop.ForAll(
		func(c, d, prefix, suffix string) bool {
			octetC := len(c) % 256
			octetD := len(d) % 256
			ip := fmt.Sprintf("192.168.%d.%d", octetC, octetD)
			msg := prefix + " " + ip + " " + suffix

			out := sanitizer.SanitizeSensitiveInfo(msg)
			return !strings.Contains(out, ip)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestProperty_SanitizeSensitiveInfoRemovesCredentials checks that any
// "authorization: <token>"-shaped substring is stripped regardless of the
// surrounding text or the token's own content.
func TestProperty_SanitizeSensitiveInfoRemovesCredentials(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)
	sanitizer := NewSanitizer()

	properties.Property("authorization headers are always redacted", prop.ForAll(
		func(token, prefix string) bool {
			if token == "" {
				return true
			}
			msg := prefix + " Authorization: " + token
			out := sanitizer.SanitizeSensitiveInfo(msg)
			return !strings.Contains(out, token) || strings.Contains(out, "[redacted]")
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestProperty_SanitizeNeverReturnsEmptyFields checks that Sanitize always
// returns a fully-populated SanitizedError for any Kind/reason pair,
// including Kinds and reasons nothing has ever registered.
func TestProperty_SanitizeNeverReturnsEmptyFields(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)
	sanitizer := NewSanitizer()

	knownKinds := []orcherrors.Kind{
		orcherrors.KindValidation,
		orcherrors.KindNotFound,
		orcherrors.KindAuthentication,
		orcherrors.KindRateLimit,
		orcherrors.KindTimeout,
		orcherrors.KindNetwork,
		orcherrors.KindServer,
		orcherrors.KindClient,
		orcherrors.KindResourceConstraints,
		orcherrors.KindInstanceNotStartable,
		orcherrors.KindStartupOperationInProgress,
		orcherrors.KindStartupFailed,
		orcherrors.KindHealthCheckFailed,
	}

	properties.Property("every Kind/reason pair yields a non-empty SanitizedError", prop.ForAll(
		func(kindIdx int, reason string) bool {
			kind := knownKinds[kindIdx%len(knownKinds)]
			se := sanitizer.Sanitize(kind, reason)
			return se.UserMessage != "" && se.ErrorCode != ""
		},
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.Property("an unregistered Kind still yields a non-empty SanitizedError", prop.ForAll(
		func(kindName, reason string) bool {
			se := sanitizer.Sanitize(orcherrors.Kind(kindName), reason)
			return se.UserMessage != "" && se.ErrorCode != ""
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestProperty_SanitizeIsDeterministic checks that sanitizing the same
// Kind/reason pair twice always yields the same SanitizedError.
func TestProperty_SanitizeIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)
	sanitizer := NewSanitizer()

	properties.Property("Sanitize is deterministic for a given input", prop.ForAll(
		func(reason string) bool {
			first := sanitizer.Sanitize(orcherrors.KindNetwork, reason)
			second := sanitizer.Sanitize(orcherrors.KindNetwork, reason)
			return first == second
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
