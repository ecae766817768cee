package jukebox

import (
	"context"
	"fmt"
	"strconv"

	"metajuke/core/ident"
	"metajuke/logger"
	"metajuke/model"
)

// ========== 平台配置 ==========

// Initialize 初始化平台，只能执行一次
func (e *Engine) Initialize(ctx context.Context, admin, asset string, feeBps uint32) error {
	if admin == "" || asset == "" {
		return invalidArgument("admin and asset required")
	}
	if feeBps > model.MaxPlatformFeeBps {
		return ErrFeeTooHigh
	}
	return e.run(ctx, "initialize", func(s *txScope) error {
		existing, err := s.store.GetPlatformConfig(ctx)
		if err != nil {
			return fmt.Errorf("读取平台配置失败: %w", err)
		}
		if existing != nil {
			return ErrAlreadyInitialized
		}
		cfg := &model.PlatformConfig{
			Admin:          admin,
			Asset:          asset,
			PlatformFeeBps: feeBps,
			Custody:        e.custody,
			Obligations:    model.NewAmount(0),
			CreatedAt:      s.at,
			UpdatedAt:      s.at,
		}
		if err := s.store.PutPlatformConfig(ctx, cfg); err != nil {
			return fmt.Errorf("保存平台配置失败: %w", err)
		}
		for _, name := range []string{model.CounterTrack, model.CounterTable, model.CounterRequest} {
			if err := s.store.ResetCounter(ctx, name); err != nil {
				return fmt.Errorf("重置计数器失败: %w", err)
			}
		}
		logger.Info("平台初始化完成",
			logger.String("admin", admin),
			logger.String("asset", asset),
			logger.Uint32("feeBps", feeBps))
		return nil
	})
}

// UpdatePlatformFee 管理员调整平台费率
func (e *Engine) UpdatePlatformFee(ctx context.Context, caller string, feeBps uint32) error {
	return e.run(ctx, "update_platform_fee", func(s *txScope) error {
		cfg, err := loadConfig(ctx, s)
		if err != nil {
			return err
		}
		if caller == "" || caller != cfg.Admin {
			return ErrNotAdmin
		}
		if feeBps > model.MaxPlatformFeeBps {
			return ErrFeeTooHigh
		}
		cfg.PlatformFeeBps = feeBps
		cfg.UpdatedAt = s.at
		if err := s.store.PutPlatformConfig(ctx, cfg); err != nil {
			return fmt.Errorf("保存平台配置失败: %w", err)
		}
		logger.Info("平台费率已更新", logger.Uint32("feeBps", feeBps))
		return nil
	})
}

// Mint 管理员向账户发行资产：充值支付资产或发放 profile token
func (e *Engine) Mint(ctx context.Context, caller, asset, account string, amount model.Amount) error {
	if asset == "" || account == "" {
		return invalidArgument("asset and account required")
	}
	if amount.Sign() <= 0 {
		return invalidArgument("amount must be positive")
	}
	return e.run(ctx, "mint", func(s *txScope) error {
		cfg, err := loadConfig(ctx, s)
		if err != nil {
			return err
		}
		if caller == "" || caller != cfg.Admin {
			return ErrNotAdmin
		}
		if err := s.bank.Mint(ctx, asset, account, amount); err != nil {
			return fmt.Errorf("发行资产失败: %w", err)
		}
		logger.Info("资产已发行",
			logger.String("asset", asset),
			logger.String("account", account),
			logger.String("amount", amount.String()))
		return nil
	})
}

// ========== 用户与艺人 ==========

// RegisterUser 凭持有的 profile token 注册用户
func (e *Engine) RegisterUser(ctx context.Context, address, profileNFT, avatarURI string) (*model.User, error) {
	if address == "" {
		return nil, ErrMissingCaller
	}
	if profileNFT == "" {
		return nil, invalidArgument("profile token required")
	}
	var user *model.User
	err := e.run(ctx, "register_user", func(s *txScope) error {
		existing, err := s.store.GetUser(ctx, address)
		if err != nil {
			return fmt.Errorf("读取用户失败: %w", err)
		}
		if existing != nil {
			return ErrUserExists
		}
		binding, err := s.store.GetProfileBinding(ctx, profileNFT)
		if err != nil {
			return fmt.Errorf("读取 profile 绑定失败: %w", err)
		}
		if binding != nil {
			if binding.Address != address {
				return ErrProfileNotOwned
			}
			return ErrProfileBound
		}
		held, err := s.bank.Holds(ctx, profileNFT, address, model.NewAmount(1))
		if err != nil {
			return fmt.Errorf("校验 profile token 失败: %w", err)
		}
		if !held {
			return ErrProfileNotOwned
		}

		user = &model.User{
			Address:    address,
			ProfileNFT: profileNFT,
			AvatarURI:  avatarURI,
			Reputation: model.InitialReputation,
			IsActive:   true,
			CreatedAt:  s.at,
			UpdatedAt:  s.at,
		}
		if err := s.store.PutUser(ctx, user); err != nil {
			return fmt.Errorf("保存用户失败: %w", err)
		}
		if err := s.store.PutProfileBinding(ctx, &model.ProfileBinding{ProfileNFT: profileNFT, Address: address, CreatedAt: s.at}); err != nil {
			return fmt.Errorf("保存 profile 绑定失败: %w", err)
		}
		logger.Info("用户注册成功", logger.String("user", address), logger.String("profile", profileNFT))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserProfile 更新头像
func (e *Engine) UpdateUserProfile(ctx context.Context, address, avatarURI string) (*model.User, error) {
	var user *model.User
	err := e.run(ctx, "update_user_profile", func(s *txScope) error {
		var err error
		user, err = requireUser(ctx, s, address)
		if err != nil {
			return err
		}
		user.AvatarURI = avatarURI
		user.UpdatedAt = s.at
		if err := s.store.PutUser(ctx, user); err != nil {
			return fmt.Errorf("保存用户失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterArtist 已注册用户申请成为艺人
func (e *Engine) RegisterArtist(ctx context.Context, address, name string) (*model.Artist, error) {
	if name == "" {
		return nil, invalidArgument("artist name required")
	}
	var artist *model.Artist
	err := e.run(ctx, "register_artist", func(s *txScope) error {
		if _, err := requireUser(ctx, s, address); err != nil {
			return err
		}
		existing, err := s.store.GetArtist(ctx, address)
		if err != nil {
			return fmt.Errorf("读取艺人失败: %w", err)
		}
		if existing != nil {
			return ErrArtistExists
		}
		artist = &model.Artist{
			Address:        address,
			ArtistName:     name,
			RevenueBalance: model.NewAmount(0),
			CreatedAt:      s.at,
			UpdatedAt:      s.at,
		}
		if err := s.store.PutArtist(ctx, artist); err != nil {
			return fmt.Errorf("保存艺人失败: %w", err)
		}
		logger.Info("艺人注册成功", logger.String("artist", address), logger.String("name", name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artist, nil
}

// ========== 曲目 ==========

// MintTrackInput 发行曲目参数
type MintTrackInput struct {
	Title         string
	BasePrice     model.Amount
	Licenses      uint32
	MetadataURI   string
	Collaborators []string
	RoyaltySplit  model.RoyaltySplit
}

func validateSplit(split model.RoyaltySplit) error {
	if split.Total() != 100 {
		return ErrInvalidSplit
	}
	for _, share := range split {
		if share.Recipient == "" {
			return invalidArgument("royalty recipient required")
		}
	}
	return nil
}

// MintTrack 艺人发行曲目
func (e *Engine) MintTrack(ctx context.Context, artistAddr string, in MintTrackInput) (*model.Track, error) {
	if in.Title == "" {
		return nil, invalidArgument("title required")
	}
	if in.BasePrice.Sign() < 0 {
		return nil, ErrNegativePrice
	}
	if err := validateSplit(in.RoyaltySplit); err != nil {
		return nil, err
	}
	var track *model.Track
	err := e.run(ctx, "mint_track", func(s *txScope) error {
		if artistAddr == "" {
			return ErrMissingCaller
		}
		artist, err := s.store.GetArtist(ctx, artistAddr)
		if err != nil {
			return fmt.Errorf("读取艺人失败: %w", err)
		}
		if artist == nil {
			return ErrNotArtist
		}
		counter, id, err := e.nextCounter(ctx, s, model.CounterTrack, func(counter uint32) model.ID {
			return ident.TrackID(e.ids, counter)
		})
		if err != nil {
			return err
		}
		track = &model.Track{
			ID:                id,
			ArtistID:          artistAddr,
			Title:             in.Title,
			Collaborators:     model.StringList(in.Collaborators),
			BasePrice:         in.BasePrice,
			LicensesRemaining: in.Licenses,
			MetadataURI:       in.MetadataURI,
			RoyaltySplit:      in.RoyaltySplit,
			TrackNFT:          "track_nft_" + strconv.FormatUint(uint64(counter), 10),
			CreatedAt:         s.at,
			UpdatedAt:         s.at,
		}
		if err := s.store.PutTrack(ctx, track); err != nil {
			return fmt.Errorf("保存曲目失败: %w", err)
		}
		s.emit(EventTrackMinted, "", map[string]string{
			"track":  id.String(),
			"artist": artistAddr,
			"title":  in.Title,
		})
		logger.Info("曲目发行成功",
			logger.Stringer("track", id),
			logger.String("artist", artistAddr),
			logger.Uint32("licenses", in.Licenses))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// UpdateTrackInput 曲目可修改的字段
type UpdateTrackInput struct {
	BasePrice   model.Amount
	Licenses    uint32
	MetadataURI string
}

// UpdateTrack 只有曲目所属艺人可以修改价格、授权数和元数据
func (e *Engine) UpdateTrack(ctx context.Context, artistAddr string, trackID model.ID, in UpdateTrackInput) (*model.Track, error) {
	if in.BasePrice.Sign() < 0 {
		return nil, ErrNegativePrice
	}
	var track *model.Track
	err := e.run(ctx, "update_track", func(s *txScope) error {
		var err error
		track, err = requireTrack(ctx, s, trackID)
		if err != nil {
			return err
		}
		if artistAddr == "" || track.ArtistID != artistAddr {
			return ErrNotTrackOwner
		}
		track.BasePrice = in.BasePrice
		track.LicensesRemaining = in.Licenses
		track.MetadataURI = in.MetadataURI
		track.UpdatedAt = s.at
		if err := s.store.PutTrack(ctx, track); err != nil {
			return fmt.Errorf("保存曲目失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

// ========== 桌台 ==========

// TableSettings 桌台可配置项
type TableSettings struct {
	Name            string
	SkipThreshold   uint32
	PriceMultiplier uint32 // basis points
}

func (t TableSettings) validate() error {
	if t.Name == "" {
		return invalidArgument("table name required")
	}
	if t.SkipThreshold == 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// CreateTable 创建桌台，房主不会自动加入
func (e *Engine) CreateTable(ctx context.Context, owner string, settings TableSettings) (*model.JukeboxTable, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	var table *model.JukeboxTable
	err := e.run(ctx, "create_table", func(s *txScope) error {
		if _, err := requireUser(ctx, s, owner); err != nil {
			return err
		}
		_, id, err := e.nextCounter(ctx, s, model.CounterTable, func(counter uint32) model.ID {
			return ident.TableID(e.ids, owner, counter)
		})
		if err != nil {
			return err
		}
		table = &model.JukeboxTable{
			ID:              id,
			Name:            settings.Name,
			OwnerID:         owner,
			Queue:           model.IDList{},
			SkipVotes:       model.VoterSet{},
			SkipThreshold:   settings.SkipThreshold,
			PriceMultiplier: settings.PriceMultiplier,
			IsActive:        true,
			CreatedAt:       s.at,
		}
		if err := putTable(ctx, s, table); err != nil {
			return err
		}
		s.emit(EventTableCreated, id.String(), map[string]string{
			"owner": owner,
			"name":  settings.Name,
		})
		logger.Info("桌台创建成功",
			logger.Stringer("table", id),
			logger.String("owner", owner),
			logger.String("name", settings.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// UpdateTable 房主修改名称、跳过阈值和价格倍率
func (e *Engine) UpdateTable(ctx context.Context, owner string, tableID model.ID, settings TableSettings) (*model.JukeboxTable, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	unlock := e.lockTable(tableID)
	defer unlock()

	var table *model.JukeboxTable
	err := e.run(ctx, "update_table", func(s *txScope) error {
		var err error
		table, err = requireOwnedTable(ctx, s, owner, tableID)
		if err != nil {
			return err
		}
		table.Name = settings.Name
		table.SkipThreshold = settings.SkipThreshold
		table.PriceMultiplier = settings.PriceMultiplier
		return putTable(ctx, s, table)
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
