package instance

import "encoding/json"

func marshalMonitorPayload(p interface{}) ([]byte, error) {
	return json.Marshal(p)
}

func marshalWebhookPayload(p interface{}) ([]byte, error) {
	return json.Marshal(p)
}
