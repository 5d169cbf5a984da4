package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresListener turns NOTIFY messages on ProductsChannel into change signals.
// A reconnect is also reported as a change, since notifications may have been missed.
type PostgresListener struct {
	listener *pq.Listener
	changes  chan struct{}
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

// NewPostgresListener connects a dedicated LISTEN connection using dsn.
func NewPostgresListener(dsn string, logger *zap.Logger) (*PostgresListener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("product listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	}
	l := pq.NewListener(dsn, 2*time.Second, time.Minute, report)
	if err := l.Listen(ProductsChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("store: listen on %s: %w", ProductsChannel, err)
	}

	pl := &PostgresListener{
		listener: l,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go pl.loop()
	return pl, nil
}

func (pl *PostgresListener) loop() {
	keepalive := time.NewTicker(90 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-pl.done:
			return
		case n, ok := <-pl.listener.Notify:
			if !ok {
				return
			}
			if n != nil {
				pl.logger.Debug("product change notified", zap.String("product_id", n.Extra))
			}
			pl.signal()
		case <-keepalive.C:
			if err := pl.listener.Ping(); err != nil {
				pl.logger.Warn("product listener ping failed", zap.Error(err))
			}
		}
	}
}

func (pl *PostgresListener) signal() {
	select {
	case pl.changes <- struct{}{}:
	default:
	}
}

func (pl *PostgresListener) Changes() <-chan struct{} {
	return pl.changes
}

func (pl *PostgresListener) Close() error {
	var err error
	pl.once.Do(func() {
		close(pl.done)
		err = pl.listener.Close()
	})
	return err
}
