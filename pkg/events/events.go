// Package events defines the payloads published to Kafka.
package events

import "time"

// DocumentIngested is emitted after an upload finishes, successfully or not.
type DocumentIngested struct {
	UploadID         uint      `json:"upload_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	CollectionName   string    `json:"collection_name"`
	TotalChunks      int       `json:"total_chunks"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Key 决定分区，同一集合的事件落在同一分区保证顺序。
func (e DocumentIngested) Key() []byte {
	return []byte(e.CollectionName)
}
