package novita

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"

	orcherrors "novita-orchestrator/pkg/errors"
)

// categorizeHTTPStatus implements §4.2's HTTP status categorization.
func categorizeHTTPStatus(status int, body []byte, headers map[string]string) *orcherrors.Error {
	msg := extractMessage(body)
	switch {
	case status == 401:
		return orcherrors.New(orcherrors.KindAuthentication, msg)
	case status == 404:
		return orcherrors.New(orcherrors.KindNotFound, msg)
	case status == 429:
		retryAfter := 0
		if v, ok := headers["Retry-After"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				retryAfter = n
			}
		}
		return orcherrors.RateLimit(retryAfter, msg)
	case status >= 500:
		return orcherrors.New(orcherrors.KindServer, msg)
	case status >= 400:
		return orcherrors.New(orcherrors.KindClient, msg)
	default:
		return nil
	}
}

// categorizeTransportError classifies an error from the HTTP round trip
// itself (no response received) per §4.2.
func categorizeTransportError(err error) *orcherrors.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return orcherrors.Wrap(orcherrors.KindTimeout, err, "context deadline exceeded on the HTTP round trip")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return orcherrors.Wrap(orcherrors.KindTimeout, err, "request timed out")
	}
	return orcherrors.Wrap(orcherrors.KindNetwork, err, err.Error())
}

func extractMessage(body []byte) string {
	var e errorResponseWire
	if len(body) > 0 && json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return string(body)
}
