package models

import (
	"time"
)

// ReadableDateLayout is the fecha_legible format shown on the dashboard.
const ReadableDateLayout = "2006-01-02 15:04"

// DiagnosisRecord is the persisted outcome of one image analysis. Records are never updated.
type DiagnosisRecord struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RecordID     string    `gorm:"size:36;not null;uniqueIndex" json:"_id"`
	Timestamp    float64   `gorm:"not null;index:idx_diagnosis_user_ts,priority:2" json:"timestamp"`
	Username     string    `gorm:"size:150;not null;index:idx_diagnosis_user_ts,priority:1" json:"username"`
	Detected     bool      `gorm:"not null" json:"detectado"`
	Reasoning    string    `gorm:"type:text;not null" json:"razonamiento"`
	FungusType   *string   `gorm:"type:text" json:"tipo_hongo,omitempty"`
	ReadableDate string    `gorm:"size:16;not null" json:"fecha_legible"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"-"`
}

// EpochSeconds converts t to the float seconds representation used in timestamp fields.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
