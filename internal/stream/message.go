package stream

import (
	"fmt"
	"strings"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/goccy/go-json"
)

const (
	fieldDocVersionID = "doc_version_id"
	fieldPayload      = "payload"
)

type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseVersionEvent reads the version id either from a flat field or from a
// JSON payload field.
func ParseVersionEvent(msg *StreamMessage) (*models.VersionEvent, error) {
	if id := strings.TrimSpace(msg.Fields[fieldDocVersionID]); id != "" {
		return &models.VersionEvent{DocumentVersionID: id}, nil
	}

	payload, ok := msg.Fields[fieldPayload]
	if !ok {
		return nil, fmt.Errorf("message %s has neither %s nor %s", msg.ID, fieldDocVersionID, fieldPayload)
	}

	var event models.VersionEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	event.DocumentVersionID = strings.TrimSpace(event.DocumentVersionID)
	if event.DocumentVersionID == "" {
		return nil, fmt.Errorf("message %s payload has no %s", msg.ID, fieldDocVersionID)
	}

	return &event, nil
}
