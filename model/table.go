package model

import "time"

// BasisPoints 万分比基数，10000 = 1.0x
const BasisPoints = 10_000

// JukeboxTable 共享点歌桌
type JukeboxTable struct {
	ID              ID        `json:"id" gorm:"primaryKey;type:char(64)"`
	Name            string    `json:"name" gorm:"size:100;not null"`
	OwnerID         string    `json:"ownerId" gorm:"size:128;index;not null"`
	CurrentTrack    *ID       `json:"currentTrack,omitempty" gorm:"type:char(64)"`
	Queue           IDList    `json:"queue" gorm:"type:text"`
	SkipVotes       VoterSet  `json:"skipVotes" gorm:"type:text"`
	SkipThreshold   uint32    `json:"skipThreshold" gorm:"not null"`
	PriceMultiplier uint32    `json:"priceMultiplier" gorm:"not null"` // basis points
	MemberCount     uint32    `json:"memberCount" gorm:"default:0"`
	IsActive        bool      `json:"isActive" gorm:"not null"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (JukeboxTable) TableName() string {
	return "jukebox_tables"
}

// Playing 是否有正在播放的曲目
func (t *JukeboxTable) Playing() bool {
	return t.CurrentTrack != nil
}

// TableMembership 桌台成员，同时承载管理员标记
type TableMembership struct {
	TableID  ID        `json:"tableId" gorm:"primaryKey;type:char(64)"`
	Member   string    `json:"member" gorm:"primaryKey;size:128"`
	JoinedAt time.Time `json:"joinedAt"`
	IsAdmin  bool      `json:"isAdmin" gorm:"default:false"`
}

// TableName 指定表名
func (TableMembership) TableName() string {
	return "table_memberships"
}
