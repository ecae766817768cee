package model

import "time"

// TrackRequest 点歌收据，只追加不修改
type TrackRequest struct {
	ID         ID        `json:"id" gorm:"primaryKey;type:char(64)"`
	Requester  string    `json:"requester" gorm:"size:128;index;not null"`
	TrackID    ID        `json:"trackId" gorm:"type:char(64);index;not null"`
	TableID    ID        `json:"tableId" gorm:"type:char(64);index;not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	AmountPaid Amount    `json:"amountPaid" gorm:"type:varchar(64);not null"`
}

// TableName 指定表名
func (TrackRequest) TableName() string {
	return "track_requests"
}
