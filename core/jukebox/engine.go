// Package jukebox 点歌桌会话引擎、付费分账引擎与点歌收据账本
package jukebox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metajuke/core/bank"
	"metajuke/core/ident"
	"metajuke/logger"
	"metajuke/metrics"
	"metajuke/model"
	"metajuke/repository"
)

// ReceiptSink 已提交收据的外部归档
type ReceiptSink interface {
	Archive(ctx context.Context, receipt *model.TrackRequest) error
}

// Options 引擎依赖
type Options struct {
	Store    repository.Store
	Bank     bank.Binder
	IDs      ident.Generator
	Emitter  Emitter
	Receipts ReceiptSink
	Metrics  *metrics.JukeboxMetrics
	// Custody 托管账户：收款先进入这里再分账
	Custody string
	Now     func() time.Time
}

// Engine 点歌引擎
type Engine struct {
	store    repository.Store
	bank     bank.Binder
	ids      ident.Generator
	emitter  Emitter
	receipts ReceiptSink
	metrics  *metrics.JukeboxMetrics
	custody  string
	now      func() time.Time

	tables   keyedMutex // 桌台锁
	counters keyedMutex // 计数器锁，递增和派生 ID 在同一把锁下
}

// NewEngine 创建引擎
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("jukebox: store not configured")
	}
	if opts.Bank == nil {
		return nil, errors.New("jukebox: bank not configured")
	}
	if opts.Custody == "" {
		return nil, errors.New("jukebox: custody account not configured")
	}
	e := &Engine{
		store:    opts.Store,
		bank:     opts.Bank,
		ids:      opts.IDs,
		emitter:  opts.Emitter,
		receipts: opts.Receipts,
		metrics:  opts.Metrics,
		custody:  opts.Custody,
		now:      opts.Now,
	}
	if e.ids == nil {
		e.ids = ident.SHA256{}
	}
	if e.emitter == nil {
		e.emitter = NoopEmitter{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Custody 托管账户
func (e *Engine) Custody() string {
	return e.custody
}

// txScope 单次调用的事务上下文，事件和收据在提交后才发出
type txScope struct {
	store    repository.Store
	bank     bank.Service
	at       time.Time
	events   []*Event
	receipts []*model.TrackRequest
}

func (s *txScope) emit(typ EventType, tableID string, attrs map[string]string) {
	s.events = append(s.events, newEvent(typ, tableID, attrs, s.at))
}

// run 在一个存储事务内执行 fn，成功提交后再发布事件、归档收据
func (e *Engine) run(ctx context.Context, op string, fn func(s *txScope) error) error {
	start := time.Now()
	scope := &txScope{at: e.now()}
	err := e.store.Transaction(ctx, func(tx repository.Store) error {
		scope.store = tx
		scope.bank = e.bank.Bind(tx)
		scope.events = scope.events[:0]
		scope.receipts = scope.receipts[:0]
		return fn(scope)
	})
	e.metrics.ObserveOperation(op, string(KindOf(err)), time.Since(start))
	if err != nil {
		if KindOf(err) == KindInternal {
			logger.Error("引擎操作失败", logger.String("op", op), logger.ErrorField(err))
		}
		return err
	}

	for _, evt := range scope.events {
		e.emitter.Emit(ctx, evt)
	}
	for _, receipt := range scope.receipts {
		e.archive(ctx, receipt)
	}
	return nil
}

// lockTable 对桌台加锁
func (e *Engine) lockTable(id model.ID) func() {
	return e.tables.Lock(id.String())
}

// nextCounter 计数器加一并派生 ID
func (e *Engine) nextCounter(ctx context.Context, s *txScope, name string, derive func(counter uint32) model.ID) (uint32, model.ID, error) {
	unlock := e.counters.Lock(name)
	defer unlock()
	counter, err := s.store.IncrementCounter(ctx, name)
	if err != nil {
		return 0, model.ID{}, fmt.Errorf("递增计数器 %s 失败: %w", name, err)
	}
	return counter, derive(counter), nil
}

func (e *Engine) archive(ctx context.Context, receipt *model.TrackRequest) {
	if e.receipts == nil {
		return
	}
	if err := e.receipts.Archive(ctx, receipt); err != nil {
		logger.Warn("收据归档失败",
			logger.Stringer("request", receipt.ID),
			logger.ErrorField(err))
	}
}

// ========== 共用的读取与校验 ==========

func loadConfig(ctx context.Context, s *txScope) (*model.PlatformConfig, error) {
	cfg, err := s.store.GetPlatformConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取平台配置失败: %w", err)
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func requireUser(ctx context.Context, s *txScope, address string) (*model.User, error) {
	if address == "" {
		return nil, ErrMissingCaller
	}
	user, err := s.store.GetUser(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("读取用户失败: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotRegistered
	}
	return user, nil
}

func requireTable(ctx context.Context, s *txScope, id model.ID) (*model.JukeboxTable, error) {
	table, err := s.store.GetTable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取桌台失败: %w", err)
	}
	if table == nil {
		return nil, ErrTableNotFound
	}
	return table, nil
}

func requireOwnedTable(ctx context.Context, s *txScope, owner string, id model.ID) (*model.JukeboxTable, error) {
	if owner == "" {
		return nil, ErrMissingCaller
	}
	table, err := requireTable(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if table.OwnerID != owner {
		return nil, ErrNotTableOwner
	}
	return table, nil
}

func requireTrack(ctx context.Context, s *txScope, id model.ID) (*model.Track, error) {
	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取曲目失败: %w", err)
	}
	if track == nil {
		return nil, ErrTrackNotFound
	}
	return track, nil
}

func putTable(ctx context.Context, s *txScope, table *model.JukeboxTable) error {
	table.UpdatedAt = s.at
	if err := s.store.PutTable(ctx, table); err != nil {
		return fmt.Errorf("保存桌台失败: %w", err)
	}
	return nil
}
