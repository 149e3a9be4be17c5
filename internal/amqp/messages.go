package amqp

import (
	"encoding/json"
	"time"
)

// DatasetImportedMessage announces that a dataset finished importing.
// It carries only the ID; the snapshot worker fetches the records from storage.
type DatasetImportedMessage struct {
	DatasetID string    `json:"dataset_id"`
	Name      string    `json:"name"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetImportedMessage creates an import announcement.
func NewDatasetImportedMessage(datasetID, name string, records int) *DatasetImportedMessage {
	return &DatasetImportedMessage{
		DatasetID: datasetID,
		Name:      name,
		Records:   records,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetImportedMessageFromJSON creates a message from JSON bytes
func DatasetImportedMessageFromJSON(data []byte) (*DatasetImportedMessage, error) {
	var msg DatasetImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
