package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type memStore struct {
	saved []*models.Notification
	err   error
}

func (m *memStore) CreateNotifications(_ context.Context, ns []*models.Notification) error {
	if m.err != nil {
		return m.err
	}
	for i, n := range ns {
		n.ID = uint(len(m.saved) + i + 1)
	}
	m.saved = append(m.saved, ns...)
	return nil
}

func uptr(v uint) *uint { return &v }

func TestService_SendPersistsThenPushes(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder()
	svc := NewService(st, rec)

	require.NoError(t, svc.Send(context.Background(), &models.Notification{UserID: uptr(5), Type: "order", Title: "t", Message: "m"}))
	require.NoError(t, svc.Send(context.Background(), &models.Notification{Type: "flag", Title: "t", Message: "m"}))

	require.Len(t, st.saved, 2)
	require.Len(t, rec.ForUser(5), 1)
	require.Equal(t, uint(1), rec.ForUser(5)[0].ID)
	require.Len(t, rec.ForAdmins(), 1)
}

func TestService_SendDoesNotPushWhenPersistFails(t *testing.T) {
	rec := NewRecorder()
	svc := NewService(&memStore{err: errors.New("db down")}, rec)

	err := svc.Send(context.Background(), &models.Notification{UserID: uptr(1)})
	require.Error(t, err)
	require.Empty(t, rec.ForUser(1))
}

func dial(t *testing.T, srv *httptest.Server, query ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if len(query) > 0 {
		url += "?" + query[0]
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitRoom(t *testing.T, h *Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.RoomSize(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RoutesByRoom(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("admin") == "1" {
			_ = hub.Serve(w, r, 9, true)
			return
		}
		_ = hub.Serve(w, r, 1, false)
	}))
	defer srv.Close()

	buyer := dial(t, srv)
	defer buyer.Close()
	waitRoom(t, hub, UserRoom(1), 1)

	adm := dial(t, srv, "admin=1")
	defer adm.Close()
	waitRoom(t, hub, AdminRoom, 1)

	hub.ToUser(1, &models.Notification{ID: 11, Title: "for buyer"})
	hub.ToAdmins(&models.Notification{ID: 12, Title: "for admins"})

	var env Envelope
	_ = buyer.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, buyer.ReadJSON(&env))
	require.Equal(t, uint(11), env.Notification.ID)

	_ = adm.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, adm.ReadJSON(&env))
	require.Equal(t, uint(12), env.Notification.ID)
}

func TestHub_LeaveOnDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 3, false)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	waitRoom(t, hub, UserRoom(3), 1)
	require.NoError(t, conn.Close())
	waitRoom(t, hub, UserRoom(3), 0)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://shop.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://shop.example")
	require.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	require.False(t, check(req))
	require.Nil(t, originChecker(nil))
}

func TestPGBridge_PublishUsesPgNotify(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`SELECT pg_notify\(\$1, \$2\)`).
		WithArgs(DefaultChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	b := NewPGBridge(db, NewHub(zap.NewNop().Sugar(), nil), zap.NewNop().Sugar())
	b.ToUser(4, &models.Notification{ID: 1, Title: "x"})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGBridge_DispatchDecodesPayload(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 8, false)
	}))
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()
	waitRoom(t, hub, UserRoom(8), 1)

	b := NewPGBridge(nil, hub, zap.NewNop().Sugar())
	payload, err := json.Marshal(bridgeMessage{Room: UserRoom(8), Notification: &models.Notification{ID: 77}})
	require.NoError(t, err)
	b.dispatch(string(payload))
	b.dispatch("not json")

	var env Envelope
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, uint(77), env.Notification.ID)
}
