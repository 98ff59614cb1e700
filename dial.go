package surreal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/forgo/surreal/internal/embed"
	"github.com/forgo/surreal/internal/storage/boltstore"
	"github.com/forgo/surreal/internal/storage/memstore"
	"github.com/forgo/surreal/internal/wsconn"
	"github.com/forgo/surreal/pkg/values"
)

// transport is the backend contract shared by the embedded engine and the
// WebSocket connection. Implementations are safe for concurrent use.
type transport interface {
	Send(ctx context.Context, method string, params ...values.Value) (values.Value, error)
	Execute(ctx context.Context, req []byte) ([]byte, error)
	Live(ctx context.Context, table string) (values.UUID, <-chan values.Notification, error)
	Kill(ctx context.Context, id values.UUID) error
	PushMessages() (<-chan []byte, error)
	Close(ctx context.Context) error
}

// Option configures a handle at connect time.
type Option func(*config)

type config struct {
	log *slog.Logger
}

// WithLogger routes the handle's internal logging (transport faults,
// dropped notifications) to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

func newConfig(opts []Option) config {
	cfg := config{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// dial selects and opens the backend for an endpoint URI:
//
//	mem://           ephemeral in-process store
//	surrealkv://path durable embedded store
//	ws://host:port   remote server (wss:// for TLS)
func dial(ctx context.Context, endpoint string, cfg config) (transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "mem", "memory":
		return embed.New(memstore.New(), cfg.log), nil
	case "surrealkv":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("endpoint %q has no file path", endpoint)
		}
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, err
		}
		return embed.New(store, cfg.log), nil
	case "ws", "wss":
		return wsconn.Dial(ctx, endpoint, cfg.log)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}
