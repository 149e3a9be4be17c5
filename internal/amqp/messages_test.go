package amqp

import (
	"testing"
	"time"
)

func TestDatasetImportedMessage_RoundTrip(t *testing.T) {
	msg := NewDatasetImportedMessage("ds-42", "sales.xlsx", 120)
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := DatasetImportedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.DatasetID != "ds-42" || got.Name != "sales.xlsx" || got.Records != 120 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Timestamp.Sub(msg.Timestamp) > time.Second {
		t.Fatalf("timestamp drift: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestDatasetImportedMessageFromJSON_Invalid(t *testing.T) {
	if _, err := DatasetImportedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
