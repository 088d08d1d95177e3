package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnomalyType identifies which operational metric deviated
type AnomalyType string

const (
	AnomalyRejectionSpike      AnomalyType = "REJECTION_SPIKE"
	AnomalyProcessingTimeDrift AnomalyType = "PROCESSING_TIME_DRIFT"
	AnomalyApplicationSurge    AnomalyType = "APPLICATION_SURGE"
)

// AlertSeverity grades how far a metric deviated from its baseline
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AnomalyAlert is an append-only operational alert. Acknowledged is the
// only mutable field after insertion.
type AnomalyAlert struct {
	ID               uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Type             AnomalyType   `gorm:"type:varchar(30);not null;index" json:"type"`
	Severity         AlertSeverity `gorm:"type:varchar(10);not null" json:"severity"`
	Description      string        `gorm:"type:text" json:"description"`
	Metric           string        `gorm:"type:varchar(50);not null;index;uniqueIndex:idx_alerts_metric_day,priority:1" json:"metric"`
	CurrentValue     float64       `json:"current_value"`
	ExpectedValue    float64       `json:"expected_value"`
	DeviationPercent float64       `json:"deviation_percent"`
	DetectedAt       time.Time     `gorm:"index" json:"detected_at"`
	// DetectedOn buckets the alert by calendar day; the unique index
	// with Metric makes concurrent same-day scans insert-once.
	DetectedOn string `gorm:"type:date;uniqueIndex:idx_alerts_metric_day,priority:2" json:"detected_on"`
	Acknowledged     bool          `gorm:"not null;default:false;index" json:"acknowledged"`
}

// BeforeCreate sets the primary key for the alert row.
func (a *AnomalyAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
