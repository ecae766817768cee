package jukebox

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"metajuke/core/bank"
	"metajuke/core/ident"
	"metajuke/logger"
	"metajuke/model"
)

// Price 最终价格 = base * multiplier / 10000，截断
func Price(base model.Amount, multiplierBps uint32) model.Amount {
	v := new(big.Int).Mul(base.Big(), new(big.Int).SetUint64(uint64(multiplierBps)))
	v.Quo(v, big.NewInt(model.BasisPoints))
	return model.AmountFromBig(v)
}

// Share 单个分成条目的结果
type Share struct {
	Recipient string
	Amount    model.Amount
}

// Distribution 一次付款的分账结果
// Fee + Pool == Payment，Shares 之和 + Dust == Pool
type Distribution struct {
	Payment model.Amount
	Fee     model.Amount
	Pool    model.Amount
	Shares  []Share
	// Dust 截断余数，留在托管账户
	Dust model.Amount
}

// SplitPayment 按平台费率和版税比例拆分付款
func SplitPayment(payment model.Amount, feeBps uint32, split model.RoyaltySplit) Distribution {
	paid := payment.Big()
	fee := new(big.Int).Mul(paid, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Quo(fee, big.NewInt(model.BasisPoints))
	pool := new(big.Int).Sub(paid, fee)

	d := Distribution{
		Payment: model.AmountFromBig(paid),
		Fee:     model.AmountFromBig(fee),
		Pool:    model.AmountFromBig(pool),
		Shares:  make([]Share, 0, len(split)),
	}
	distributed := new(big.Int)
	for _, entry := range split {
		share := new(big.Int).Mul(pool, new(big.Int).SetUint64(uint64(entry.Percentage)))
		share.Quo(share, big.NewInt(100))
		distributed.Add(distributed, share)
		d.Shares = append(d.Shares, Share{Recipient: entry.Recipient, Amount: model.AmountFromBig(share)})
	}
	d.Dust = model.AmountFromBig(new(big.Int).Sub(pool, distributed))
	return d
}

// transfer 转账失败时区分余额不足与内部错误
func transfer(ctx context.Context, s *txScope, asset, from, to string, amount model.Amount) error {
	if amount.Sign() <= 0 {
		return nil
	}
	if err := s.bank.Transfer(ctx, asset, from, to, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientBalance) || errors.Is(err, bank.ErrInvalidAmount) || errors.Is(err, bank.ErrInvalidAccount) {
			return wrapPayment(err)
		}
		return fmt.Errorf("转账失败: %w", err)
	}
	return nil
}

// RequestTrack 付费点歌：校验、收款、记收据、入队、扣授权、分账
func (e *Engine) RequestTrack(ctx context.Context, requester string, trackID, tableID model.ID) (model.ID, error) {
	unlock := e.lockTable(tableID)
	defer unlock()

	var (
		requestID model.ID
		price     model.Amount
		dist      Distribution
	)
	err := e.run(ctx, "request_track", func(s *txScope) error {
		if _, err := requireUser(ctx, s, requester); err != nil {
			return err
		}
		membership, err := s.store.GetMembership(ctx, tableID, requester)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if membership == nil {
			return ErrNotAMember
		}
		track, err := requireTrack(ctx, s, trackID)
		if err != nil {
			return err
		}
		if track.Exhausted() {
			return ErrNoLicensesRemaining
		}
		table, err := requireTable(ctx, s, tableID)
		if err != nil {
			return err
		}
		if !table.IsActive {
			return ErrTableClosed
		}
		cfg, err := loadConfig(ctx, s)
		if err != nil {
			return err
		}

		// 收款必须先于任何状态修改
		price = Price(track.BasePrice, table.PriceMultiplier)
		if err := transfer(ctx, s, cfg.Asset, requester, cfg.Custody, price); err != nil {
			logger.Warn("点歌收款失败",
				logger.String("requester", requester),
				logger.Stringer("track", trackID),
				logger.String("price", price.String()),
				logger.ErrorField(err))
			return err
		}

		_, requestID, err = e.nextCounter(ctx, s, model.CounterRequest, func(counter uint32) model.ID {
			return ident.RequestID(e.ids, requester, trackID, tableID, counter, s.at.UnixNano())
		})
		if err != nil {
			return err
		}
		receipt := &model.TrackRequest{
			ID:         requestID,
			Requester:  requester,
			TrackID:    trackID,
			TableID:    tableID,
			Timestamp:  s.at,
			AmountPaid: price,
		}
		if err := s.store.CreateRequest(ctx, receipt); err != nil {
			return fmt.Errorf("保存点歌收据失败: %w", err)
		}
		s.receipts = append(s.receipts, receipt)

		table.Queue = append(table.Queue, trackID)
		if err := putTable(ctx, s, table); err != nil {
			return err
		}

		track.LicensesRemaining--
		track.PlayCount++
		track.UpdatedAt = s.at
		if err := s.store.PutTrack(ctx, track); err != nil {
			return fmt.Errorf("保存曲目失败: %w", err)
		}

		dist, err = e.distribute(ctx, s, cfg, track, price)
		if err != nil {
			return err
		}

		s.emit(EventTrackRequested, tableID.String(), map[string]string{
			"request":   requestID.String(),
			"requester": requester,
			"track":     trackID.String(),
			"amount":    price.String(),
		})
		logger.Info("点歌成功",
			logger.Stringer("request", requestID),
			logger.Stringer("table", tableID),
			logger.Stringer("track", trackID),
			logger.String("amount", price.String()))
		return nil
	})
	if err != nil {
		return model.ID{}, err
	}
	e.metrics.RecordPayment(price.Big())
	e.metrics.RecordPayout("fee", dist.Fee.Big())
	for _, share := range dist.Shares {
		e.metrics.RecordPayout("royalty", share.Amount.Big())
	}
	return requestID, nil
}

// distribute 平台费转给管理员；有艺人记录的收款人记入待提取余额，其余直接转账
func (e *Engine) distribute(ctx context.Context, s *txScope, cfg *model.PlatformConfig, track *model.Track, payment model.Amount) (Distribution, error) {
	d := SplitPayment(payment, cfg.PlatformFeeBps, track.RoyaltySplit)
	if err := transfer(ctx, s, cfg.Asset, cfg.Custody, cfg.Admin, d.Fee); err != nil {
		return d, err
	}

	escrowed := model.NewAmount(0)
	for _, share := range d.Shares {
		if share.Amount.Sign() <= 0 {
			continue
		}
		artist, err := s.store.GetArtist(ctx, share.Recipient)
		if err != nil {
			return d, fmt.Errorf("读取艺人失败: %w", err)
		}
		if artist == nil {
			if err := transfer(ctx, s, cfg.Asset, cfg.Custody, share.Recipient, share.Amount); err != nil {
				return d, err
			}
			continue
		}
		artist.RevenueBalance = artist.RevenueBalance.Add(share.Amount)
		artist.UpdatedAt = s.at
		if err := s.store.PutArtist(ctx, artist); err != nil {
			return d, fmt.Errorf("保存艺人失败: %w", err)
		}
		escrowed = escrowed.Add(share.Amount)
	}

	if escrowed.Sign() > 0 {
		cfg.Obligations = cfg.Obligations.Add(escrowed)
		cfg.UpdatedAt = s.at
		if err := s.store.PutPlatformConfig(ctx, cfg); err != nil {
			return d, fmt.Errorf("保存平台配置失败: %w", err)
		}
	}
	return d, nil
}

// WithdrawRevenue 艺人提取全部待提取版税。余额先清零再转账
func (e *Engine) WithdrawRevenue(ctx context.Context, artistAddr string) (model.Amount, error) {
	amount := model.NewAmount(0)
	err := e.run(ctx, "withdraw_revenue", func(s *txScope) error {
		if artistAddr == "" {
			return ErrMissingCaller
		}
		artist, err := s.store.GetArtist(ctx, artistAddr)
		if err != nil {
			return fmt.Errorf("读取艺人失败: %w", err)
		}
		if artist == nil {
			return ErrArtistNotFound
		}
		amount = artist.RevenueBalance
		if amount.Sign() <= 0 {
			amount = model.NewAmount(0)
			return nil
		}
		cfg, err := loadConfig(ctx, s)
		if err != nil {
			return err
		}

		artist.RevenueBalance = model.NewAmount(0)
		artist.UpdatedAt = s.at
		if err := s.store.PutArtist(ctx, artist); err != nil {
			return fmt.Errorf("保存艺人失败: %w", err)
		}
		cfg.Obligations = cfg.Obligations.Sub(amount)
		cfg.UpdatedAt = s.at
		if err := s.store.PutPlatformConfig(ctx, cfg); err != nil {
			return fmt.Errorf("保存平台配置失败: %w", err)
		}
		if err := transfer(ctx, s, cfg.Asset, cfg.Custody, artistAddr, amount); err != nil {
			return err
		}
		logger.Info("版税提取成功", logger.String("artist", artistAddr), logger.String("amount", amount.String()))
		return nil
	})
	if err != nil {
		return model.NewAmount(0), err
	}
	if amount.Sign() > 0 {
		e.metrics.RecordPayout("withdrawal", amount.Big())
	}
	return amount, nil
}
