package repository

import (
	"context"
	"errors"

	"metajuke/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 点歌系统的持久化键值存储
// 查询不存在的记录返回 nil, nil
type Store interface {
	// 曲目
	GetTrack(ctx context.Context, id model.ID) (*model.Track, error)
	PutTrack(ctx context.Context, track *model.Track) error

	// 桌台与成员
	GetTable(ctx context.Context, id model.ID) (*model.JukeboxTable, error)
	PutTable(ctx context.Context, table *model.JukeboxTable) error
	GetMembership(ctx context.Context, tableID model.ID, member string) (*model.TableMembership, error)
	PutMembership(ctx context.Context, membership *model.TableMembership) error
	DeleteMembership(ctx context.Context, tableID model.ID, member string) error
	ListMemberships(ctx context.Context, tableID model.ID) ([]*model.TableMembership, error)

	// 点歌收据
	GetRequest(ctx context.Context, id model.ID) (*model.TrackRequest, error)
	CreateRequest(ctx context.Context, request *model.TrackRequest) error
	ListTableRequests(ctx context.Context, tableID model.ID, limit int) ([]*model.TrackRequest, error)

	// 用户与艺人
	GetUser(ctx context.Context, address string) (*model.User, error)
	PutUser(ctx context.Context, user *model.User) error
	GetArtist(ctx context.Context, address string) (*model.Artist, error)
	PutArtist(ctx context.Context, artist *model.Artist) error
	GetProfileBinding(ctx context.Context, profileNFT string) (*model.ProfileBinding, error)
	PutProfileBinding(ctx context.Context, binding *model.ProfileBinding) error

	// 平台配置
	GetPlatformConfig(ctx context.Context) (*model.PlatformConfig, error)
	PutPlatformConfig(ctx context.Context, cfg *model.PlatformConfig) error

	// 计数器，缺失时读作 0
	GetCounter(ctx context.Context, name string) (uint32, error)
	IncrementCounter(ctx context.Context, name string) (uint32, error)
	ResetCounter(ctx context.Context, name string) error

	// 余额
	GetBalance(ctx context.Context, asset, account string) (model.Amount, error)
	PutBalance(ctx context.Context, balance *model.Balance) error

	// Transaction 在单个事务内执行 fn，fn 返回错误时整体回滚
	Transaction(ctx context.Context, fn func(Store) error) error
}

// gormStore GORM 实现
type gormStore struct {
	db *gorm.DB
	// 事务内且为 MySQL 时对读取加行锁
	lockRows bool
}

// NewGormStore 创建 GORM 存储
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// AutoMigrate 迁移全部表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(model.AllModels()...)
}

func (s *gormStore) query(ctx context.Context) *gorm.DB {
	tx := s.db.WithContext(ctx)
	if s.lockRows {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// first 读取单条记录，不存在返回 false
func (s *gormStore) first(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := s.query(ctx).Where(query, args...).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ========== 曲目 ==========

func (s *gormStore) GetTrack(ctx context.Context, id model.ID) (*model.Track, error) {
	var track model.Track
	ok, err := s.first(ctx, &track, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &track, nil
}

func (s *gormStore) PutTrack(ctx context.Context, track *model.Track) error {
	return s.db.WithContext(ctx).Save(track).Error
}

// ========== 桌台与成员 ==========

func (s *gormStore) GetTable(ctx context.Context, id model.ID) (*model.JukeboxTable, error) {
	var table model.JukeboxTable
	ok, err := s.first(ctx, &table, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &table, nil
}

func (s *gormStore) PutTable(ctx context.Context, table *model.JukeboxTable) error {
	return s.db.WithContext(ctx).Save(table).Error
}

func (s *gormStore) GetMembership(ctx context.Context, tableID model.ID, member string) (*model.TableMembership, error) {
	var membership model.TableMembership
	ok, err := s.first(ctx, &membership, "table_id = ? AND member = ?", tableID, member)
	if err != nil || !ok {
		return nil, err
	}
	return &membership, nil
}

func (s *gormStore) PutMembership(ctx context.Context, membership *model.TableMembership) error {
	return s.db.WithContext(ctx).Save(membership).Error
}

func (s *gormStore) DeleteMembership(ctx context.Context, tableID model.ID, member string) error {
	return s.db.WithContext(ctx).
		Where("table_id = ? AND member = ?", tableID, member).
		Delete(&model.TableMembership{}).Error
}

// ListMemberships 按加入时间排序
func (s *gormStore) ListMemberships(ctx context.Context, tableID model.ID) ([]*model.TableMembership, error) {
	var memberships []*model.TableMembership
	err := s.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("joined_at ASC").
		Find(&memberships).Error
	return memberships, err
}

// ========== 点歌收据 ==========

func (s *gormStore) GetRequest(ctx context.Context, id model.ID) (*model.TrackRequest, error) {
	var request model.TrackRequest
	ok, err := s.first(ctx, &request, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &request, nil
}

// CreateRequest 只插入，主键冲突直接报错
func (s *gormStore) CreateRequest(ctx context.Context, request *model.TrackRequest) error {
	return s.db.WithContext(ctx).Create(request).Error
}

// ListTableRequests 最新的在前
func (s *gormStore) ListTableRequests(ctx context.Context, tableID model.ID, limit int) ([]*model.TrackRequest, error) {
	var requests []*model.TrackRequest
	err := s.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

// ========== 用户与艺人 ==========

func (s *gormStore) GetUser(ctx context.Context, address string) (*model.User, error) {
	var user model.User
	ok, err := s.first(ctx, &user, "address = ?", address)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) PutUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *gormStore) GetArtist(ctx context.Context, address string) (*model.Artist, error) {
	var artist model.Artist
	ok, err := s.first(ctx, &artist, "address = ?", address)
	if err != nil || !ok {
		return nil, err
	}
	return &artist, nil
}

func (s *gormStore) PutArtist(ctx context.Context, artist *model.Artist) error {
	return s.db.WithContext(ctx).Save(artist).Error
}

func (s *gormStore) GetProfileBinding(ctx context.Context, profileNFT string) (*model.ProfileBinding, error) {
	var binding model.ProfileBinding
	ok, err := s.first(ctx, &binding, "profile_nft = ?", profileNFT)
	if err != nil || !ok {
		return nil, err
	}
	return &binding, nil
}

func (s *gormStore) PutProfileBinding(ctx context.Context, binding *model.ProfileBinding) error {
	return s.db.WithContext(ctx).Save(binding).Error
}

// ========== 平台配置 ==========

func (s *gormStore) GetPlatformConfig(ctx context.Context) (*model.PlatformConfig, error) {
	var cfg model.PlatformConfig
	ok, err := s.first(ctx, &cfg, "id = ?", model.PlatformConfigID)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

func (s *gormStore) PutPlatformConfig(ctx context.Context, cfg *model.PlatformConfig) error {
	cfg.ID = model.PlatformConfigID
	return s.db.WithContext(ctx).Save(cfg).Error
}

// ========== 计数器 ==========

func (s *gormStore) GetCounter(ctx context.Context, name string) (uint32, error) {
	var counter model.Counter
	ok, err := s.first(ctx, &counter, "name = ?", name)
	if err != nil || !ok {
		return 0, err
	}
	return counter.Value, nil
}

// IncrementCounter 加一并返回新值
func (s *gormStore) IncrementCounter(ctx context.Context, name string) (uint32, error) {
	current, err := s.GetCounter(ctx, name)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.db.WithContext(ctx).Save(&model.Counter{Name: name, Value: next}).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (s *gormStore) ResetCounter(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Save(&model.Counter{Name: name, Value: 0}).Error
}

// ========== 余额 ==========

// GetBalance 缺失的账户余额为 0
func (s *gormStore) GetBalance(ctx context.Context, asset, account string) (model.Amount, error) {
	var balance model.Balance
	ok, err := s.first(ctx, &balance, "asset = ? AND account = ?", asset, account)
	if err != nil || !ok {
		return model.NewAmount(0), err
	}
	return balance.Amount, nil
}

func (s *gormStore) PutBalance(ctx context.Context, balance *model.Balance) error {
	return s.db.WithContext(ctx).Save(balance).Error
}

// ========== 事务 ==========

// Transaction 嵌套调用时复用外层事务（GORM 使用 SAVEPOINT）
func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{
			db:       tx,
			lockRows: tx.Dialector.Name() == "mysql",
		})
	})
}
