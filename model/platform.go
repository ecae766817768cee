package model

import "time"

// PlatformConfigID 平台配置只有一行
const PlatformConfigID = 1

// MaxPlatformFeeBps 平台费上限 20%
const MaxPlatformFeeBps = 2000

// PlatformConfig 平台配置：管理员、支付资产、费率、托管账户
type PlatformConfig struct {
	ID             uint      `json:"-" gorm:"primaryKey"`
	Admin          string    `json:"admin" gorm:"size:128;not null"`
	Asset          string    `json:"asset" gorm:"size:128;not null"`
	PlatformFeeBps uint32    `json:"platformFeeBps" gorm:"not null"`
	Custody        string    `json:"custody" gorm:"size:128;not null"`
	Obligations    Amount    `json:"obligations" gorm:"type:varchar(64);not null"` // 托管中尚未提取的艺人余额
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (PlatformConfig) TableName() string {
	return "platform_configs"
}

// 计数器名称
const (
	CounterTrack   = "track"
	CounterTable   = "table"
	CounterRequest = "request"
)

// Counter 单调递增计数器
type Counter struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value uint32 `gorm:"not null;default:0"`
}

// TableName 指定表名
func (Counter) TableName() string {
	return "counters"
}

// Balance 资产余额
type Balance struct {
	Asset     string    `json:"asset" gorm:"primaryKey;size:128"`
	Account   string    `json:"account" gorm:"primaryKey;size:128"`
	Amount    Amount    `json:"amount" gorm:"type:varchar(64);not null"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Balance) TableName() string {
	return "balances"
}

// PlatformStats 平台统计
type PlatformStats struct {
	Tracks   uint32 `json:"tracks"`
	Tables   uint32 `json:"tables"`
	Requests uint32 `json:"requests"`
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Track{},
		&JukeboxTable{},
		&TableMembership{},
		&TrackRequest{},
		&User{},
		&Artist{},
		&ProfileBinding{},
		&PlatformConfig{},
		&Counter{},
		&Balance{},
	}
}
