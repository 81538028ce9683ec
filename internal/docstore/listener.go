package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/livescript/livescript/internal/metrics"
)

const notifyChannel = "livescript_changes"

// ListenConn is the slice of *pgx.Conn the listener needs.
type ListenConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

type changePayload struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Listener turns Postgres NOTIFY events into subscription refreshes.
type Listener struct {
	store      *PG
	dial       func(ctx context.Context) (ListenConn, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(store *PG, dial func(ctx context.Context) (ListenConn, error)) *Listener {
	return &Listener{
		store:      store,
		dial:       dial,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// PgxDialer adapts a *pgx.Conn dialer to the Listener.
func PgxDialer(dial func(ctx context.Context) (*pgx.Conn, error)) func(ctx context.Context) (ListenConn, error) {
	return func(ctx context.Context) (ListenConn, error) {
		conn, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Run listens until ctx is cancelled, reconnecting with backoff.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Error("docstore: change listener disconnected", "error", err, "retry_in", backoff.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("docstore: listening for document changes", "channel", notifyChannel)

	// Changes made while disconnected were not delivered.
	l.store.refreshAll(ctx)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(ctx, n)
	}
}

func (l *Listener) handle(ctx context.Context, n *pgconn.Notification) {
	if n == nil || n.Channel != notifyChannel {
		return
	}
	var payload changePayload
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		slog.Warn("docstore: ignoring malformed change payload", "payload", n.Payload, "error", err)
		return
	}
	metrics.StoreNotifications.WithLabelValues(payload.Collection).Inc()

	switch payload.Collection {
	case CollectionGroups, CollectionPresentation:
		l.store.refresh(ctx, docKey{payload.Collection, payload.ID})
	default:
		// Transcript lists are fetched once per presentation.
	}
}
