package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metajuke/core/auth"
	"metajuke/core/bank"
	"metajuke/core/jukebox"
	"metajuke/model"
	"metajuke/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testSecret  = "test-secret"
	testAsset   = "usdc"
	testCustody = "custody"
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	hub    *jukebox.EventHub
	ledger *bank.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(gdb))

	store := repository.NewGormStore(gdb)
	ledger := bank.NewLedger(store)
	hub := jukebox.NewEventHub()
	go hub.Run()

	engine, err := jukebox.NewEngine(jukebox.Options{
		Store:   store,
		Bank:    ledger,
		Emitter: hub,
		Custody: testCustody,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(NewAPIHandler(engine, testSecret), NewEventStreamHandler(hub, testSecret)))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		_ = sqlDB.Close()
	})
	return &testServer{t: t, srv: srv, hub: hub, ledger: ledger}
}

func (s *testServer) token(address string) string {
	token, err := auth.GenerateToken(testSecret, address, time.Hour)
	require.NoError(s.t, err)
	return token
}

// do 发送请求，caller 为空时不带 token
func (s *testServer) do(method, path, caller string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(caller))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func (s *testServer) mint(asset, account string, amount int64) {
	require.NoError(s.t, s.ledger.Mint(context.Background(), asset, account, model.NewAmount(amount)))
}

func (s *testServer) registerUser(address string) {
	s.mint("profile-"+address, address, 1)
	status, body := s.do(http.MethodPost, "/api/users", address, RegisterUserRequest{ProfileNFT: "profile-" + address})
	require.Equal(s.t, http.StatusCreated, status, body)
}

// setup 初始化平台、艺人、曲目和桌台，返回曲目与桌台 ID
func (s *testServer) setup() (string, string) {
	status, body := s.do(http.MethodPost, "/api/platform", "admin", InitializeRequest{Asset: testAsset, PlatformFeeBps: 500})
	require.Equal(s.t, http.StatusCreated, status, body)

	s.registerUser("artist")
	status, body = s.do(http.MethodPost, "/api/artists", "artist", map[string]string{"artistName": "The Band"})
	require.Equal(s.t, http.StatusCreated, status, body)

	status, body = s.do(http.MethodPost, "/api/tracks", "artist", map[string]interface{}{
		"title":        "Song",
		"basePrice":    "1000",
		"licenses":     2,
		"royaltySplit": []map[string]interface{}{{"recipient": "artist", "percentage": 100}},
	})
	require.Equal(s.t, http.StatusCreated, status, body)
	trackID := body["id"].(string)

	s.registerUser("owner")
	status, body = s.do(http.MethodPost, "/api/tables", "owner", TableRequest{Name: "Bar", SkipThreshold: 2, PriceMultiplier: 15000})
	require.Equal(s.t, http.StatusCreated, status, body)
	return trackID, body["id"].(string)
}

func TestRequestTrackOverHTTP(t *testing.T) {
	s := newTestServer(t)
	trackID, tableID := s.setup()

	s.registerUser("alice")
	status, _ := s.do(http.MethodPost, "/api/tables/"+tableID+"/join", "alice", nil)
	require.Equal(t, http.StatusNoContent, status)

	// 余额不足
	status, body := s.do(http.MethodPost, "/api/tables/"+tableID+"/requests", "alice", map[string]string{"trackId": trackID})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, string(jukebox.KindPaymentFailed), body["kind"])

	s.mint(testAsset, "alice", 10_000)
	status, body = s.do(http.MethodPost, "/api/tables/"+tableID+"/requests", "alice", map[string]string{"trackId": trackID})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "1500", body["amountPaid"])
	requestID := body["id"].(string)

	status, body = s.do(http.MethodGet, "/api/requests/"+requestID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["requester"])

	status, body = s.do(http.MethodGet, "/api/tables/"+tableID+"/queue", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{trackID}, body["queue"])

	status, body = s.do(http.MethodGet, "/api/artists/artist", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1425", body["revenueBalance"])

	status, body = s.do(http.MethodPost, "/api/artists/me/withdraw", "artist", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1425", body["withdrawn"])

	status, body = s.do(http.MethodGet, "/api/platform/custody", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["solvent"])
	assert.Equal(t, "0", body["obligations"])

	status, body = s.do(http.MethodGet, "/api/platform/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["requests"])
	assert.EqualValues(t, 1, body["tables"])
}

func TestErrorKindsMapToStatus(t *testing.T) {
	s := newTestServer(t)
	trackID, tableID := s.setup()

	status, _ := s.do(http.MethodPost, "/api/platform", "admin", InitializeRequest{Asset: testAsset})
	assert.Equal(t, http.StatusConflict, status)

	status, body := s.do(http.MethodPost, "/api/tracks", "artist", map[string]interface{}{
		"title":        "Bad",
		"basePrice":    "10",
		"royaltySplit": []map[string]interface{}{{"recipient": "artist", "percentage": 90}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, jukebox.CodeOf(jukebox.ErrInvalidSplit), body["code"])

	status, _ = s.do(http.MethodPut, "/api/tables/"+tableID+"/status", "alice", map[string]bool{"active": false})
	assert.Equal(t, http.StatusForbidden, status)

	unknown := model.ID{1}.String()
	s.registerUser("alice")
	status, _ = s.do(http.MethodPost, "/api/tables/"+unknown+"/join", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodPost, "/api/tables/"+tableID+"/requests", "alice", map[string]string{"trackId": trackID})
	assert.Equal(t, http.StatusPreconditionFailed, status)

	status, _ = s.do(http.MethodGet, "/api/tables/not-hex", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodGet, "/api/tracks/"+unknown, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminMintEnablesRegistration(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodPost, "/api/platform", "admin", InitializeRequest{Asset: testAsset, PlatformFeeBps: 500})
	require.Equal(t, http.StatusCreated, status, body)

	status, _ = s.do(http.MethodPost, "/api/platform/mint", "dave", MintRequest{Asset: "profile-dave", Account: "dave", Amount: model.NewAmount(1)})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/api/users", "dave", RegisterUserRequest{ProfileNFT: "profile-dave"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(http.MethodPost, "/api/platform/mint", "admin", MintRequest{Asset: "profile-dave", Account: "dave", Amount: model.NewAmount(1)})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "1", body["amount"])

	status, body = s.do(http.MethodPost, "/api/users", "dave", RegisterUserRequest{ProfileNFT: "profile-dave"})
	require.Equal(t, http.StatusCreated, status, body)

	status, _ = s.do(http.MethodPost, "/api/platform/mint", "admin", MintRequest{Asset: testAsset, Account: "dave"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodPost, "/api/platform/mint", "admin", MintRequest{Asset: testAsset, Account: "dave", Amount: model.NewAmount(5000)})
	require.Equal(t, http.StatusOK, status, body)
	balance, err := s.ledger.Balance(context.Background(), testAsset, "dave")
	require.NoError(t, err)
	assert.Equal(t, "5000", balance.String())
}

func TestMutationsRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodPost, "/api/tables", "", TableRequest{Name: "Bar", SkipThreshold: 1})
	assert.Equal(t, http.StatusUnauthorized, status)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/tables", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMembershipEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, tableID := s.setup()
	s.registerUser("bob")

	status, _ := s.do(http.MethodPost, "/api/tables/"+tableID+"/admins", "owner", map[string]string{"address": "bob"})
	require.Equal(t, http.StatusNoContent, status)

	status, body := s.do(http.MethodGet, "/api/tables/"+tableID+"/members/bob", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["member"])
	assert.Equal(t, true, body["admin"])

	status, body = s.do(http.MethodGet, "/api/tables/"+tableID+"/members", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["memberCount"])

	status, body = s.do(http.MethodPost, "/api/tables/"+tableID+"/advance", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["playing"])

	status, _ = s.do(http.MethodDelete, "/api/tables/"+tableID+"/admins/bob", "owner", nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodPost, "/api/tables/"+tableID+"/advance", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/api/tables/"+tableID+"/leave", "bob", nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodPost, "/api/tables/"+tableID+"/leave", "bob", nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)
}

func TestEventStreamDeliversTableEvents(t *testing.T) {
	s := newTestServer(t)
	_, tableID := s.setup()
	s.registerUser("carol")

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/events?table=" + tableID + "&token=" + s.token("observer")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.ClientCount(tableID) == 1 }, time.Second, 10*time.Millisecond)

	status, _ := s.do(http.MethodPost, "/api/tables/"+tableID+"/join", "carol", nil)
	require.Equal(t, http.StatusNoContent, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg jukebox.FeedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, jukebox.EventMembershipChanged, msg.Event.Type)
	assert.Equal(t, "carol", msg.Event.Attributes["member"])
}

func TestEventStreamRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.srv.URL + "/ws/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
