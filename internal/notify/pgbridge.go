package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Skotchmaster/marketplace/internal/models"
)

const DefaultChannel = "notifications"

type bridgeMessage struct {
	Room         string               `json:"room"`
	Notification *models.Notification `json:"notification"`
}

// PGBridge relays pushes through Postgres NOTIFY so every server process
// delivers to its own connected sockets. A nil local hub makes it publish-only.
type PGBridge struct {
	db      *sql.DB
	channel string
	local   *Hub
	log     *zap.SugaredLogger
}

func NewPGBridge(db *sql.DB, local *Hub, log *zap.SugaredLogger) *PGBridge {
	return &PGBridge{db: db, channel: DefaultChannel, local: local, log: log}
}

func (b *PGBridge) ToUser(userID uint, n *models.Notification) {
	b.publish(UserRoom(userID), n)
}

func (b *PGBridge) ToAdmins(n *models.Notification) {
	b.publish(AdminRoom, n)
}

func (b *PGBridge) publish(room string, n *models.Notification) {
	payload, err := json.Marshal(bridgeMessage{Room: room, Notification: n})
	if err != nil {
		b.log.Errorw("notify_bridge_error", "reason", "encode", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", b.channel, string(payload)); err != nil {
		b.log.Warnw("notify_bridge_error", "reason", "pg_notify", "room", room, "error", err)
		// still deliver to this process's sockets
		if b.local != nil {
			b.local.Emit(room, n)
		}
	}
}

// Listen relays NOTIFY payloads to the local hub until ctx is done.
func (b *PGBridge) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.log.Warnw("notify_listener_event", "event", ev, "error", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(b.channel); err != nil {
		return err
	}
	b.log.Infow("notify_listener_started", "channel", b.channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// connection was re-established; missed payloads are gone
				continue
			}
			b.dispatch(n.Extra)
		case <-time.After(90 * time.Second):
			go func() { _ = listener.Ping() }()
		}
	}
}

func (b *PGBridge) dispatch(payload string) {
	var msg bridgeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Room == "" {
		b.log.Warnw("notify_bridge_error", "reason", "decode", "error", err)
		return
	}
	b.local.Emit(msg.Room, msg.Notification)
}
