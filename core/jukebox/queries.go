package jukebox

import (
	"context"
	"fmt"

	"metajuke/model"
)

// 只读查询：无需鉴权，未知标识返回零值而不是错误

func (e *Engine) GetUser(ctx context.Context, address string) (*model.User, error) {
	return e.store.GetUser(ctx, address)
}

func (e *Engine) GetArtist(ctx context.Context, address string) (*model.Artist, error) {
	return e.store.GetArtist(ctx, address)
}

func (e *Engine) GetTrack(ctx context.Context, id model.ID) (*model.Track, error) {
	return e.store.GetTrack(ctx, id)
}

func (e *Engine) GetTable(ctx context.Context, id model.ID) (*model.JukeboxTable, error) {
	return e.store.GetTable(ctx, id)
}

// GetQueue 桌台队列，未知桌台返回空列表
func (e *Engine) GetQueue(ctx context.Context, tableID model.ID) ([]model.ID, error) {
	table, err := e.store.GetTable(ctx, tableID)
	if err != nil || table == nil {
		return []model.ID{}, err
	}
	return append([]model.ID{}, table.Queue...), nil
}

func (e *Engine) IsTableMember(ctx context.Context, tableID model.ID, user string) (bool, error) {
	membership, err := e.store.GetMembership(ctx, tableID, user)
	return membership != nil, err
}

func (e *Engine) IsTableAdmin(ctx context.Context, tableID model.ID, user string) (bool, error) {
	membership, err := e.store.GetMembership(ctx, tableID, user)
	return membership != nil && membership.IsAdmin, err
}

func (e *Engine) GetTableMemberCount(ctx context.Context, tableID model.ID) (uint32, error) {
	table, err := e.store.GetTable(ctx, tableID)
	if err != nil || table == nil {
		return 0, err
	}
	return table.MemberCount, nil
}

// ListTableMembers 按加入时间排序
func (e *Engine) ListTableMembers(ctx context.Context, tableID model.ID) ([]*model.TableMembership, error) {
	return e.store.ListMemberships(ctx, tableID)
}

func (e *Engine) HasVotedToSkip(ctx context.Context, user string, tableID model.ID) (bool, error) {
	table, err := e.store.GetTable(ctx, tableID)
	if err != nil || table == nil {
		return false, err
	}
	return table.SkipVotes.Has(user), nil
}

// GetPlatformConfig 未初始化返回 nil
func (e *Engine) GetPlatformConfig(ctx context.Context) (*model.PlatformConfig, error) {
	return e.store.GetPlatformConfig(ctx)
}

// CustodyReport 托管账户余额与待提取义务，正常情况下 Balance >= Obligations
type CustodyReport struct {
	Account     string       `json:"account"`
	Balance     model.Amount `json:"balance"`
	Obligations model.Amount `json:"obligations"`
}

// Solvent 托管余额是否覆盖全部义务
func (r CustodyReport) Solvent() bool {
	return r.Balance.Cmp(r.Obligations) >= 0
}

// GetCustodyReport 读取托管账户状态
func (e *Engine) GetCustodyReport(ctx context.Context) (*CustodyReport, error) {
	cfg, err := e.store.GetPlatformConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取平台配置失败: %w", err)
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	balance, err := e.bank.Bind(e.store).Balance(ctx, cfg.Asset, cfg.Custody)
	if err != nil {
		return nil, fmt.Errorf("读取托管余额失败: %w", err)
	}
	return &CustodyReport{Account: cfg.Custody, Balance: balance, Obligations: cfg.Obligations}, nil
}
