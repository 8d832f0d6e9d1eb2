package entities

import "time"

// AnalysisRecord represents a persisted AI analysis payload. At most one row
// is authoritative per (fingerprint, kind); supersedes replace in place.
type AnalysisRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Fingerprint  string `gorm:"type:char(64);uniqueIndex:idx_analysis_fingerprint_kind;not null"`
	Kind         string `gorm:"type:varchar(32);uniqueIndex:idx_analysis_fingerprint_kind;not null"`
	Payload      string `gorm:"type:text;not null"`
	ModelVersion string `gorm:"type:varchar(64)"`
	ComputedAt   time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}
