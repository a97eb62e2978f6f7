package slicer

import (
	"encoding/json"
	"os"
	"strings"
)

// markerPayload is the JSON document the generated script writes to report
// its outcome.
type markerPayload struct {
	Status  string `json:"status"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

func readMarker(path string) (markerPayload, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return markerPayload{}, false
	}
	var payload markerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return markerPayload{}, false
	}
	return payload, true
}

func readSuccessMarker(path string) (string, bool) {
	payload, ok := readMarker(path)
	if !ok || payload.Status != "success" {
		return "", false
	}
	return payload.Output, true
}

func readErrorMarker(path string) (string, bool) {
	payload, ok := readMarker(path)
	if !ok || payload.Status != "error" {
		return "", false
	}
	msg := strings.TrimSpace(payload.Message)
	if msg == "" {
		msg = "tool reported an unspecified failure"
	}
	return msg, true
}
