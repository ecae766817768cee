package jukebox

import (
	"testing"

	"metajuke/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessionFixture alice 拥有桌台，bob/carol 为普通用户，桌台队列里有两首歌
func sessionFixture(t *testing.T, threshold uint32) (*fixture, model.ID, []model.ID) {
	f := newFixture(t).initialized()
	f.artist("alice")
	f.user("bob")
	f.user("carol")
	tableID := f.table("alice", threshold, 10000)
	tracks := []model.ID{f.track("alice", 0, 10, nil), f.track("alice", 0, 10, nil)}
	f.join("bob", tableID)
	f.join("carol", tableID)
	for _, id := range tracks {
		_, err := f.engine.RequestTrack(f.ctx, "bob", id, tableID)
		require.NoError(t, err)
	}
	return f, tableID, tracks
}

func TestJoinTableFailureOrder(t *testing.T) {
	f := newFixture(t).initialized()
	f.user("alice")
	f.user("bob")
	tableID := f.table("alice", 1, 10000)

	require.ErrorIs(t, f.engine.JoinTable(f.ctx, "ghost", model.ID{0x01}), ErrUserNotRegistered)
	require.ErrorIs(t, f.engine.JoinTable(f.ctx, "bob", model.ID{0x01}), ErrTableNotFound)

	f.join("bob", tableID)
	err := f.engine.JoinTable(f.ctx, "bob", tableID)
	require.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, KindAlreadyExists, KindOf(err))

	assert.Equal(t, uint32(1), f.getTable(tableID).MemberCount)
	events := f.events.ofType(EventMembershipChanged)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]string{"member": "bob", "joined": "true", "isAdmin": "false"}, events[0].Attributes)
}

func TestJoinClosedTableThenReactivate(t *testing.T) {
	f := newFixture(t).initialized()
	f.user("alice")
	f.user("bob")
	tableID := f.table("alice", 1, 10000)

	require.NoError(t, f.engine.SetTableStatus(f.ctx, "alice", tableID, false))
	err := f.engine.JoinTable(f.ctx, "bob", tableID)
	require.ErrorIs(t, err, ErrTableClosed)
	assert.Equal(t, KindPreconditionFailed, KindOf(err))

	require.NoError(t, f.engine.SetTableStatus(f.ctx, "alice", tableID, true))
	require.NoError(t, f.engine.JoinTable(f.ctx, "bob", tableID))

	member, err := f.engine.IsTableMember(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.True(t, member)
}

func TestLeaveTableClearsAdminFlag(t *testing.T) {
	f := newFixture(t).initialized()
	f.user("alice")
	f.user("bob")
	tableID := f.table("alice", 1, 10000)

	require.ErrorIs(t, f.engine.LeaveTable(f.ctx, "bob", tableID), ErrNotAMember)

	f.join("bob", tableID)
	require.NoError(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "bob"))
	require.NoError(t, f.engine.LeaveTable(f.ctx, "bob", tableID))

	admin, err := f.engine.IsTableAdmin(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.False(t, admin)
	count, err := f.engine.GetTableMemberCount(f.ctx, tableID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// 重新加入不会继承管理员身份
	f.join("bob", tableID)
	admin, err = f.engine.IsTableAdmin(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestAddAdminToNonMemberCreatesMembership(t *testing.T) {
	f := newFixture(t).initialized()
	f.user("alice")
	f.user("bob")
	tableID := f.table("alice", 1, 10000)

	require.ErrorIs(t, f.engine.AddTableAdmin(f.ctx, "bob", tableID, "bob"), ErrNotTableOwner)
	require.ErrorIs(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "ghost"), ErrUserNotRegistered)

	require.NoError(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "bob"))
	members, err := f.engine.ListTableMembers(f.ctx, tableID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsAdmin)
	assert.Equal(t, uint32(1), f.getTable(tableID).MemberCount)
	assert.Len(t, f.events.ofType(EventAdminChanged), 1)
	assert.Len(t, f.events.ofType(EventMembershipChanged), 1)
}

func TestRemoveAdminNeverSynthesizesMembership(t *testing.T) {
	f := newFixture(t).initialized()
	f.user("alice")
	f.user("bob")
	tableID := f.table("alice", 1, 10000)

	require.ErrorIs(t, f.engine.RemoveTableAdmin(f.ctx, "alice", tableID, "bob"), ErrNotAMember)
	member, err := f.engine.IsTableMember(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.False(t, member)

	f.join("bob", tableID)
	require.NoError(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "bob"))
	require.NoError(t, f.engine.RemoveTableAdmin(f.ctx, "alice", tableID, "bob"))

	admin, err := f.engine.IsTableAdmin(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.False(t, admin)
	member, err = f.engine.IsTableMember(f.ctx, tableID, "bob")
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, uint32(1), f.getTable(tableID).MemberCount)
}

func TestVoteToSkipThresholdTwo(t *testing.T) {
	f, tableID, tracks := sessionFixture(t, 2)

	_, err := f.engine.VoteToSkip(f.ctx, "bob", tableID)
	require.ErrorIs(t, err, ErrNoCurrentTrack)

	_, ok, err := f.engine.AdvanceQueue(f.ctx, tableID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks[0], *f.getTable(tableID).CurrentTrack)

	// 同一个人投两次不会达到阈值
	for i := 0; i < 2; i++ {
		advanced, err := f.engine.VoteToSkip(f.ctx, "bob", tableID)
		require.NoError(t, err)
		assert.False(t, advanced)
	}
	voted, err := f.engine.HasVotedToSkip(f.ctx, "bob", tableID)
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, 1, f.getTable(tableID).SkipVotes.Len())

	advanced, err := f.engine.VoteToSkip(f.ctx, "carol", tableID)
	require.NoError(t, err)
	assert.True(t, advanced)

	table := f.getTable(tableID)
	require.NotNil(t, table.CurrentTrack)
	assert.Equal(t, tracks[1], *table.CurrentTrack)
	assert.Zero(t, table.SkipVotes.Len())
	assert.Empty(t, table.Queue)
	assert.Len(t, f.events.ofType(EventSkipVoted), 3)

	voted, err = f.engine.HasVotedToSkip(f.ctx, "bob", tableID)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestVoteRequiresRegisteredUser(t *testing.T) {
	f, tableID, _ := sessionFixture(t, 2)
	_, err := f.engine.VoteToSkip(f.ctx, "ghost", tableID)
	require.ErrorIs(t, err, ErrUserNotRegistered)
	_, err = f.engine.VoteToSkip(f.ctx, "bob", model.ID{0x42})
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestAdvanceQueueAlwaysClearsVotes(t *testing.T) {
	f, tableID, tracks := sessionFixture(t, 5)

	for _, want := range tracks {
		_, _, err := f.engine.AdvanceQueue(f.ctx, tableID)
		require.NoError(t, err)
		assert.Equal(t, want, *f.getTable(tableID).CurrentTrack)
		_, err = f.engine.VoteToSkip(f.ctx, "bob", tableID)
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.getTable(tableID).SkipVotes.Len())

	// 队列已空：当前曲目置空，投票同样清空
	_, ok, err := f.engine.AdvanceQueue(f.ctx, tableID)
	require.NoError(t, err)
	assert.False(t, ok)
	table := f.getTable(tableID)
	assert.Nil(t, table.CurrentTrack)
	assert.Zero(t, table.SkipVotes.Len())
	assert.Len(t, f.events.ofType(EventQueueAdvanced), 3)
}

func TestEnqueueDoesNotAutoPromote(t *testing.T) {
	f, tableID, tracks := sessionFixture(t, 1)
	table := f.getTable(tableID)
	assert.Nil(t, table.CurrentTrack)

	queue, err := f.engine.GetQueue(f.ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, tracks, queue)
}

func TestAdvanceQueuePublicRequiresOwnerOrAdmin(t *testing.T) {
	f, tableID, tracks := sessionFixture(t, 5)

	_, _, err := f.engine.AdvanceQueuePublic(f.ctx, "bob", tableID)
	require.ErrorIs(t, err, ErrNotTableAdmin)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	next, ok, err := f.engine.AdvanceQueuePublic(f.ctx, "alice", tableID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks[0], next)

	require.NoError(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "carol"))
	next, ok, err = f.engine.AdvanceQueuePublic(f.ctx, "carol", tableID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracks[1], next)
}

func TestDeactivateClearsPlayback(t *testing.T) {
	f, tableID, _ := sessionFixture(t, 5)
	_, _, err := f.engine.AdvanceQueue(f.ctx, tableID)
	require.NoError(t, err)
	_, err = f.engine.VoteToSkip(f.ctx, "bob", tableID)
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.SetTableStatus(f.ctx, "bob", tableID, false), ErrNotTableOwner)
	require.NoError(t, f.engine.SetTableStatus(f.ctx, "alice", tableID, false))

	table := f.getTable(tableID)
	assert.False(t, table.IsActive)
	assert.Nil(t, table.CurrentTrack)
	assert.Empty(t, table.Queue)
	assert.Zero(t, table.SkipVotes.Len())
	// 成员不受影响
	assert.Equal(t, uint32(2), table.MemberCount)
	require.Len(t, f.events.ofType(EventTableStatusChanged), 1)
	assert.Equal(t, "false", f.events.ofType(EventTableStatusChanged)[0].Attributes["active"])
}

func TestMemberCountMatchesMemberships(t *testing.T) {
	f := newFixture(t).initialized()
	for _, u := range []string{"alice", "bob", "carol", "dave"} {
		f.user(u)
	}
	tableID := f.table("alice", 1, 10000)
	f.join("bob", tableID)
	f.join("carol", tableID)
	require.NoError(t, f.engine.AddTableAdmin(f.ctx, "alice", tableID, "dave"))
	require.NoError(t, f.engine.LeaveTable(f.ctx, "carol", tableID))

	members, err := f.engine.ListTableMembers(f.ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(members)), f.getTable(tableID).MemberCount)
}

func TestQueriesOnUnknownIdentifiers(t *testing.T) {
	f := newFixture(t)
	unknown := model.ID{0xaa}

	queue, err := f.engine.GetQueue(f.ctx, unknown)
	require.NoError(t, err)
	assert.Empty(t, queue)

	count, err := f.engine.GetTableMemberCount(f.ctx, unknown)
	require.NoError(t, err)
	assert.Zero(t, count)

	voted, err := f.engine.HasVotedToSkip(f.ctx, "bob", unknown)
	require.NoError(t, err)
	assert.False(t, voted)

	table, err := f.engine.GetTable(f.ctx, unknown)
	require.NoError(t, err)
	assert.Nil(t, table)

	stats, err := f.engine.GetPlatformStats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PlatformStats{}, stats)
}
