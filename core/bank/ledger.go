// Package bank 基于存储的多资产余额账本，负责原子转账
package bank

import (
	"context"
	"errors"
	"fmt"

	"metajuke/model"
	"metajuke/repository"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInvalidAccount      = errors.New("bank: account required")
)

// Transferer 价值转移服务。转账要么完整成功，要么不产生任何变化
type Transferer interface {
	Transfer(ctx context.Context, asset, from, to string, amount model.Amount) error
}

// Service 绑定到某个存储视图（通常是事务）的账本
type Service interface {
	Transferer
	Balance(ctx context.Context, asset, account string) (model.Amount, error)
	// Holds 账户是否持有不少于 min 的资产，用于 profile token 校验
	Holds(ctx context.Context, asset, account string, min model.Amount) (bool, error)
	Mint(ctx context.Context, asset, account string, amount model.Amount) error
}

// Binder 将账本绑定到调用方的事务
type Binder interface {
	Bind(store repository.Store) Service
}

// Ledger 账本实现
type Ledger struct {
	store repository.Store
}

// NewLedger 创建账本
func NewLedger(store repository.Store) *Ledger {
	return &Ledger{store: store}
}

// Bind 实现 Binder
func (l *Ledger) Bind(store repository.Store) Service {
	return &Ledger{store: store}
}

// Balance 查询余额，未知账户为 0
func (l *Ledger) Balance(ctx context.Context, asset, account string) (model.Amount, error) {
	return l.store.GetBalance(ctx, asset, account)
}

// Holds 实现 Service
func (l *Ledger) Holds(ctx context.Context, asset, account string, min model.Amount) (bool, error) {
	balance, err := l.Balance(ctx, asset, account)
	if err != nil {
		return false, err
	}
	return balance.Cmp(min) >= 0, nil
}

// Transfer 从 from 扣款并记入 to
func (l *Ledger) Transfer(ctx context.Context, asset, from, to string, amount model.Amount) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if asset == "" || from == "" || to == "" {
		return ErrInvalidAccount
	}
	return l.store.Transaction(ctx, func(tx repository.Store) error {
		src, err := tx.GetBalance(ctx, asset, from)
		if err != nil {
			return fmt.Errorf("读取余额失败: %w", err)
		}
		if src.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		if from == to {
			return nil
		}
		dst, err := tx.GetBalance(ctx, asset, to)
		if err != nil {
			return fmt.Errorf("读取余额失败: %w", err)
		}
		if err := tx.PutBalance(ctx, &model.Balance{Asset: asset, Account: from, Amount: src.Sub(amount)}); err != nil {
			return fmt.Errorf("扣款失败: %w", err)
		}
		if err := tx.PutBalance(ctx, &model.Balance{Asset: asset, Account: to, Amount: dst.Add(amount)}); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}
		return nil
	})
}

// Mint 凭空发行资产（充值、测试注资、发放 profile token）
func (l *Ledger) Mint(ctx context.Context, asset, account string, amount model.Amount) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if asset == "" || account == "" {
		return ErrInvalidAccount
	}
	return l.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.GetBalance(ctx, asset, account)
		if err != nil {
			return fmt.Errorf("读取余额失败: %w", err)
		}
		return tx.PutBalance(ctx, &model.Balance{Asset: asset, Account: account, Amount: current.Add(amount)})
	})
}
