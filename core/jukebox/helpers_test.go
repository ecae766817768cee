package jukebox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"metajuke/core/bank"
	"metajuke/core/ident"
	"metajuke/model"
	"metajuke/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testAsset   = "XLM"
	testAdmin   = "admin"
	testCustody = "custody"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recordingEmitter) Emit(_ context.Context, evt *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) ofType(typ EventType) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, evt := range r.events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

type memorySink struct {
	mu       sync.Mutex
	receipts []*model.TrackRequest
}

func (m *memorySink) Archive(_ context.Context, receipt *model.TrackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, receipt)
	return nil
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	ledger *bank.Ledger
	store  repository.Store
	events *recordingEmitter
	sink   *memorySink

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	store := repository.NewGormStore(db)
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		ledger: bank.NewLedger(store),
		store:  store,
		events: &recordingEmitter{},
		sink:   &memorySink{},
		clock:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine, err = NewEngine(Options{
		Store:    store,
		Bank:     f.ledger,
		IDs:      ident.SHA256{},
		Emitter:  f.events,
		Receipts: f.sink,
		Custody:  testCustody,
		Now: func() time.Time {
			f.clockMu.Lock()
			defer f.clockMu.Unlock()
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
	})
	require.NoError(t, err)
	return f
}

// initialized 初始化平台，费率 500bps
func (f *fixture) initialized() *fixture {
	require.NoError(f.t, f.engine.Initialize(f.ctx, testAdmin, testAsset, 500))
	return f
}

func (f *fixture) fund(account string, amount int64) {
	require.NoError(f.t, f.ledger.Mint(f.ctx, testAsset, account, model.NewAmount(amount)))
}

func (f *fixture) balance(account string) string {
	amount, err := f.ledger.Balance(f.ctx, testAsset, account)
	require.NoError(f.t, err)
	return amount.String()
}

func (f *fixture) user(address string) {
	profile := "profile-" + address
	require.NoError(f.t, f.ledger.Mint(f.ctx, profile, address, model.NewAmount(1)))
	_, err := f.engine.RegisterUser(f.ctx, address, profile, "ipfs://"+address)
	require.NoError(f.t, err)
}

func (f *fixture) artist(address string) {
	f.user(address)
	_, err := f.engine.RegisterArtist(f.ctx, address, "artist "+address)
	require.NoError(f.t, err)
}

func (f *fixture) track(artist string, price int64, licenses uint32, split model.RoyaltySplit) model.ID {
	if split == nil {
		split = model.RoyaltySplit{{Recipient: artist, Percentage: 100}}
	}
	track, err := f.engine.MintTrack(f.ctx, artist, MintTrackInput{
		Title:        "song",
		BasePrice:    model.NewAmount(price),
		Licenses:     licenses,
		MetadataURI:  "ipfs://meta",
		RoyaltySplit: split,
	})
	require.NoError(f.t, err)
	return track.ID
}

func (f *fixture) table(owner string, threshold, multiplier uint32) model.ID {
	table, err := f.engine.CreateTable(f.ctx, owner, TableSettings{
		Name:            "lounge",
		SkipThreshold:   threshold,
		PriceMultiplier: multiplier,
	})
	require.NoError(f.t, err)
	return table.ID
}

func (f *fixture) join(user string, tableID model.ID) {
	require.NoError(f.t, f.engine.JoinTable(f.ctx, user, tableID))
}

func (f *fixture) getTable(id model.ID) *model.JukeboxTable {
	table, err := f.engine.GetTable(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, table)
	return table
}

func (f *fixture) getTrack(id model.ID) *model.Track {
	track, err := f.engine.GetTrack(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, track)
	return track
}
