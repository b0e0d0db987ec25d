package models

// VersionEvent is published on the Redis stream when a document version is uploaded.
type VersionEvent struct {
	DocumentVersionID string `json:"doc_version_id"`
}
