package entities

import "time"

// CreativeAsset represents the persisted metadata for one cached creative.
type CreativeAsset struct {
	Fingerprint    string `gorm:"type:char(64);primaryKey"`
	SourceURLHash  string `gorm:"type:char(64);index;not null"`
	SourceURL      string `gorm:"type:text;not null"`
	PlatformAdID   string `gorm:"type:varchar(64);index"`
	Brand          string `gorm:"type:varchar(128);index"`
	MediaType      string `gorm:"type:varchar(16);index;not null"`
	MimeType       string `gorm:"type:varchar(64);not null"`
	SizeBytes      int64  `gorm:"not null"`
	LocalPath      string `gorm:"type:text;not null"`
	DownloadedAt   time.Time
	LastAccessedAt time.Time `gorm:"index"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (CreativeAsset) TableName() string {
	return "creative_assets"
}
