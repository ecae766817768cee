package model

import "time"

// InitialReputation 新用户初始信誉
const InitialReputation = 100

// User 已注册用户，凭 profile token 绑定
type User struct {
	Address    string    `json:"address" gorm:"primaryKey;size:128"`
	ProfileNFT string    `json:"profileNft" gorm:"size:128;uniqueIndex;not null"`
	AvatarURI  string    `json:"avatarUri" gorm:"size:512"`
	Reputation uint32    `json:"reputation" gorm:"not null"`
	IsActive   bool      `json:"isActive" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Artist 艺人，RevenueBalance 为待提取的版税
type Artist struct {
	Address        string    `json:"address" gorm:"primaryKey;size:128"`
	ArtistName     string    `json:"artistName" gorm:"size:255;not null"`
	RevenueBalance Amount    `json:"revenueBalance" gorm:"type:varchar(64);not null"`
	Verified       bool      `json:"verified" gorm:"default:false"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Artist) TableName() string {
	return "artists"
}

// ProfileBinding profile token 到用户的绑定
type ProfileBinding struct {
	ProfileNFT string    `json:"profileNft" gorm:"primaryKey;size:128"`
	Address    string    `json:"address" gorm:"size:128;not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (ProfileBinding) TableName() string {
	return "profile_bindings"
}
