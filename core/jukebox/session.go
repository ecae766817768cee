package jukebox

import (
	"context"
	"fmt"
	"strconv"

	"metajuke/logger"
	"metajuke/model"
)

func membershipAttrs(member string, joined, isAdmin bool) map[string]string {
	return map[string]string{
		"member":  member,
		"joined":  strconv.FormatBool(joined),
		"isAdmin": strconv.FormatBool(isAdmin),
	}
}

// JoinTable 加入桌台
func (e *Engine) JoinTable(ctx context.Context, user string, tableID model.ID) error {
	unlock := e.lockTable(tableID)
	defer unlock()

	return e.run(ctx, "join_table", func(s *txScope) error {
		if _, err := requireUser(ctx, s, user); err != nil {
			return err
		}
		table, err := requireTable(ctx, s, tableID)
		if err != nil {
			return err
		}
		if !table.IsActive {
			return ErrTableClosed
		}
		existing, err := s.store.GetMembership(ctx, tableID, user)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if existing != nil {
			return ErrAlreadyMember
		}

		membership := &model.TableMembership{TableID: tableID, Member: user, JoinedAt: s.at}
		if err := s.store.PutMembership(ctx, membership); err != nil {
			return fmt.Errorf("保存成员失败: %w", err)
		}
		table.MemberCount++
		if err := putTable(ctx, s, table); err != nil {
			return err
		}
		s.emit(EventMembershipChanged, tableID.String(), membershipAttrs(user, true, false))
		logger.Info("加入桌台", logger.Stringer("table", tableID), logger.String("user", user))
		return nil
	})
}

// LeaveTable 离开桌台，管理员标记随成员记录一起删除
func (e *Engine) LeaveTable(ctx context.Context, user string, tableID model.ID) error {
	unlock := e.lockTable(tableID)
	defer unlock()

	return e.run(ctx, "leave_table", func(s *txScope) error {
		membership, err := s.store.GetMembership(ctx, tableID, user)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if membership == nil {
			return ErrNotAMember
		}
		table, err := requireTable(ctx, s, tableID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteMembership(ctx, tableID, user); err != nil {
			return fmt.Errorf("删除成员失败: %w", err)
		}
		if table.MemberCount > 0 {
			table.MemberCount--
		}
		if err := putTable(ctx, s, table); err != nil {
			return err
		}
		s.emit(EventMembershipChanged, tableID.String(), membershipAttrs(user, false, false))
		logger.Info("离开桌台", logger.Stringer("table", tableID), logger.String("user", user))
		return nil
	})
}

// AddTableAdmin 房主授予管理员。非成员会直接以管理员身份加入
func (e *Engine) AddTableAdmin(ctx context.Context, owner string, tableID model.ID, target string) error {
	unlock := e.lockTable(tableID)
	defer unlock()

	return e.run(ctx, "add_table_admin", func(s *txScope) error {
		table, err := requireOwnedTable(ctx, s, owner, tableID)
		if err != nil {
			return err
		}
		if _, err := requireUser(ctx, s, target); err != nil {
			return err
		}
		membership, err := s.store.GetMembership(ctx, tableID, target)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if membership == nil {
			membership = &model.TableMembership{TableID: tableID, Member: target, JoinedAt: s.at, IsAdmin: true}
			table.MemberCount++
			if err := putTable(ctx, s, table); err != nil {
				return err
			}
			s.emit(EventMembershipChanged, tableID.String(), membershipAttrs(target, true, true))
		}
		membership.IsAdmin = true
		if err := s.store.PutMembership(ctx, membership); err != nil {
			return fmt.Errorf("保存成员失败: %w", err)
		}
		s.emit(EventAdminChanged, tableID.String(), map[string]string{"member": target, "isAdmin": "true"})
		logger.Info("授予桌台管理员", logger.Stringer("table", tableID), logger.String("target", target))
		return nil
	})
}

// RemoveTableAdmin 房主撤销管理员，成员记录保留
func (e *Engine) RemoveTableAdmin(ctx context.Context, owner string, tableID model.ID, target string) error {
	unlock := e.lockTable(tableID)
	defer unlock()

	return e.run(ctx, "remove_table_admin", func(s *txScope) error {
		if _, err := requireOwnedTable(ctx, s, owner, tableID); err != nil {
			return err
		}
		membership, err := s.store.GetMembership(ctx, tableID, target)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if membership == nil {
			return ErrNotAMember
		}
		membership.IsAdmin = false
		if err := s.store.PutMembership(ctx, membership); err != nil {
			return fmt.Errorf("保存成员失败: %w", err)
		}
		s.emit(EventAdminChanged, tableID.String(), map[string]string{"member": target, "isAdmin": "false"})
		logger.Info("撤销桌台管理员", logger.Stringer("table", tableID), logger.String("target", target))
		return nil
	})
}

// VoteToSkip 投票跳过当前曲目，达到阈值时推进队列并返回 true
func (e *Engine) VoteToSkip(ctx context.Context, user string, tableID model.ID) (bool, error) {
	unlock := e.lockTable(tableID)
	defer unlock()

	var advanced bool
	err := e.run(ctx, "vote_to_skip", func(s *txScope) error {
		advanced = false
		if _, err := requireUser(ctx, s, user); err != nil {
			return err
		}
		table, err := requireTable(ctx, s, tableID)
		if err != nil {
			return err
		}
		if !table.Playing() {
			return ErrNoCurrentTrack
		}
		table.SkipVotes.Add(user)
		votes := table.SkipVotes.Len()
		s.emit(EventSkipVoted, tableID.String(), map[string]string{
			"voter":     user,
			"track":     table.CurrentTrack.String(),
			"votes":     strconv.Itoa(votes),
			"threshold": strconv.FormatUint(uint64(table.SkipThreshold), 10),
		})
		if uint64(votes) >= uint64(table.SkipThreshold) {
			advanced = true
			advanceQueue(s, table)
		}
		return putTable(ctx, s, table)
	})
	if err != nil {
		return false, err
	}
	e.metrics.RecordSkipVote(advanced)
	return advanced, nil
}

// advanceQueue 弹出队首作为当前曲目，队列为空则置空；总是清空投票
func advanceQueue(s *txScope, table *model.JukeboxTable) (model.ID, bool) {
	table.SkipVotes = model.VoterSet{}
	if len(table.Queue) == 0 {
		table.CurrentTrack = nil
		s.emit(EventQueueAdvanced, table.ID.String(), map[string]string{"track": ""})
		return model.ID{}, false
	}
	next := table.Queue[0]
	table.Queue = append(model.IDList{}, table.Queue[1:]...)
	table.CurrentTrack = &next
	s.emit(EventQueueAdvanced, table.ID.String(), map[string]string{"track": next.String()})
	return next, true
}

// AdvanceQueue 推进队列，不做权限校验，供播放驱动在曲目结束时调用
func (e *Engine) AdvanceQueue(ctx context.Context, tableID model.ID) (model.ID, bool, error) {
	unlock := e.lockTable(tableID)
	defer unlock()
	return e.advance(ctx, "advance_queue", tableID, nil)
}

// AdvanceQueuePublic 房主或管理员手动切歌
func (e *Engine) AdvanceQueuePublic(ctx context.Context, caller string, tableID model.ID) (model.ID, bool, error) {
	unlock := e.lockTable(tableID)
	defer unlock()
	return e.advance(ctx, "advance_queue_public", tableID, func(s *txScope, table *model.JukeboxTable) error {
		if caller == "" {
			return ErrMissingCaller
		}
		if table.OwnerID == caller {
			return nil
		}
		membership, err := s.store.GetMembership(ctx, tableID, caller)
		if err != nil {
			return fmt.Errorf("读取成员失败: %w", err)
		}
		if membership == nil || !membership.IsAdmin {
			return ErrNotTableAdmin
		}
		return nil
	})
}

func (e *Engine) advance(ctx context.Context, op string, tableID model.ID, authorize func(*txScope, *model.JukeboxTable) error) (model.ID, bool, error) {
	var (
		next model.ID
		ok   bool
	)
	err := e.run(ctx, op, func(s *txScope) error {
		table, err := requireTable(ctx, s, tableID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(s, table); err != nil {
				return err
			}
		}
		next, ok = advanceQueue(s, table)
		return putTable(ctx, s, table)
	})
	if err != nil {
		return model.ID{}, false, err
	}
	return next, ok, nil
}

// SetTableStatus 房主开关桌台，关闭时清空队列、当前曲目和投票
func (e *Engine) SetTableStatus(ctx context.Context, owner string, tableID model.ID, active bool) error {
	unlock := e.lockTable(tableID)
	defer unlock()

	return e.run(ctx, "set_table_status", func(s *txScope) error {
		table, err := requireOwnedTable(ctx, s, owner, tableID)
		if err != nil {
			return err
		}
		table.IsActive = active
		if !active {
			table.Queue = model.IDList{}
			table.CurrentTrack = nil
			table.SkipVotes = model.VoterSet{}
		}
		if err := putTable(ctx, s, table); err != nil {
			return err
		}
		s.emit(EventTableStatusChanged, tableID.String(), map[string]string{"active": strconv.FormatBool(active)})
		logger.Info("桌台状态变更", logger.Stringer("table", tableID), logger.Bool("active", active))
		return nil
	})
}
