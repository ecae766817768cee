package model

import "time"

// Track 可点播的曲目
type Track struct {
	ID                ID           `json:"id" gorm:"primaryKey;type:char(64)"`
	ArtistID          string       `json:"artistId" gorm:"size:128;index;not null"`
	Title             string       `json:"title" gorm:"size:255;not null"`
	Collaborators     StringList   `json:"collaborators" gorm:"type:text"`
	PlayCount         uint32       `json:"playCount" gorm:"default:0"`
	BasePrice         Amount       `json:"basePrice" gorm:"type:varchar(64);not null"`
	LicensesRemaining uint32       `json:"licensesRemaining" gorm:"default:0"`
	MetadataURI       string       `json:"metadataUri" gorm:"size:512"`
	RoyaltySplit      RoyaltySplit `json:"royaltySplit" gorm:"type:text"`
	TrackNFT          string       `json:"trackNft" gorm:"size:64"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// Exhausted 授权已用完，仍可读取
func (t *Track) Exhausted() bool {
	return t.LicensesRemaining == 0
}
