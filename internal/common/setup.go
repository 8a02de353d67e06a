package common

import (
	"context"
	"log"
	"strings"

	"bank-dashboard-client-go/internal/accounts"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/scheduler"
	"bank-dashboard-client-go/internal/session"
	"bank-dashboard-client-go/internal/stream"
	"bank-dashboard-client-go/internal/tokenstore"
	"bank-dashboard-client-go/internal/transactions"
	"bank-dashboard-client-go/internal/transport"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker,
	// etc., so a missing .env file is fine.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the wired client components.
type Services struct {
	Tokens    tokenstore.Store
	Transport *transport.Client
	Session   *session.Store
	Cache     *accounts.Cache
	Submitter *transactions.Submitter
	Scheduler *scheduler.Scheduler
	Stream    *stream.Subscriber
	Sink      notify.Sink
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full client: token store, transport,
// session store, account cache, submitter, scheduler and (when
// enabled) the event stream. The scheduler and stream follow the
// session lifecycle through establish/teardown hooks, so login starts
// polling and logout stops it without the callers doing anything.
func InitializeServices(ctx context.Context, cfg *models.Config, sink notify.Sink) (*Services, error) {
	tokens, err := tokenstore.NewSQLiteStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	// The transport reads the credential through the session store,
	// which stays the single writer of the token.
	var sessionStore *session.Store
	tc, err := transport.NewClient(cfg.API, func() string {
		if sessionStore == nil {
			return ""
		}
		return sessionStore.Token()
	})
	if err != nil {
		tokens.Close()
		return nil, err
	}
	sessionStore = session.NewStore(tc, tokens, sink)

	cache := accounts.NewCache(sessionStore, tc, sink)
	submitter := transactions.NewSubmitter(sessionStore, tc, cache, sink)
	sched := scheduler.NewScheduler(cache, sink, cfg.Refresh.PollingInterval)

	var sub *stream.Subscriber
	if cfg.Stream.Enabled {
		sub = stream.NewSubscriber(cfg.API.BaseURL, cfg.Stream.Path, sessionStore, cache, sink)
	}

	sessionStore.OnEstablish(func() {
		sched.Start(ctx)
		if sub != nil {
			if err := sub.Start(ctx); err != nil {
				zap.L().Warn("Account event stream unavailable, relying on polling", zap.Error(err))
			}
		}
	})
	sessionStore.OnTeardown(func() {
		sched.Stop()
		if sub != nil {
			sub.Stop()
		}
		cache.Clear()
	})

	return &Services{
		Tokens:    tokens,
		Transport: tc,
		Session:   sessionStore,
		Cache:     cache,
		Submitter: submitter,
		Scheduler: sched,
		Stream:    sub,
		Sink:      sink,
	}, nil
}

func (cs *Services) Close() {
	if cs.Tokens != nil {
		cs.Tokens.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
