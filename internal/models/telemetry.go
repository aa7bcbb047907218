package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TelemetryReading is one sensor push. The payload shape is whatever the device sent.
type TelemetryReading struct {
	ID        uint           `gorm:"primaryKey"`
	Timestamp float64        `gorm:"not null;index"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

// MarshalJSON flattens the payload and adds the server timestamp, which wins
// over any timestamp key the device sent.
func (t TelemetryReading) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{}
	if len(t.Payload) > 0 {
		if err := json.Unmarshal([]byte(t.Payload), &fields); err != nil {
			return nil, err
		}
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["timestamp"] = t.Timestamp
	return json.Marshal(fields)
}

// UnmarshalJSON reverses MarshalJSON; it is used when snapshots come back from the cache.
func (t *TelemetryReading) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["timestamp"]; ok {
		if err := json.Unmarshal(raw, &t.Timestamp); err != nil {
			return err
		}
		delete(fields, "timestamp")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	t.Payload = payload
	return nil
}
