package stream_test

import (
	"context"
	"testing"
	"time"

	"bank-dashboard-client-go/internal/banktest"
	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"

	"github.com/shopspring/decimal"
)

func newStreamServices(t *testing.T, srv *banktest.Server) (*common.Services, *notify.MemorySink) {
	t.Helper()
	sink := notify.NewMemorySink()
	cfg := &models.Config{
		API: models.APIConfig{
			BaseURL:               srv.URL(),
			RequestTimeout:        5 * time.Second,
			DialTimeout:           2 * time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			MaxIdleConns:          5,
			MaxIdleConnsPerHost:   2,
		},
		Storage: models.StorageConfig{Path: ":memory:", PingTimeout: 2 * time.Second},
		// Polling stays effectively off so cache updates in these
		// tests can only come from pushed events.
		Refresh: models.RefreshConfig{PollingInterval: time.Hour},
		Stream:  models.StreamConfig{Enabled: true, Path: "/ws/accounts"},
	}
	services, err := common.InitializeServices(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	t.Cleanup(services.Close)
	return services, sink
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestStreamNotBuiltWhenDisabled(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	sink := notify.NewMemorySink()
	cfg := &models.Config{
		API: models.APIConfig{
			BaseURL:        srv.URL(),
			RequestTimeout: 5 * time.Second,
			DialTimeout:    2 * time.Second,
			MaxIdleConns:   5, MaxIdleConnsPerHost: 2,
			ResponseHeaderTimeout: 5 * time.Second,
		},
		Storage: models.StorageConfig{Path: ":memory:", PingTimeout: 2 * time.Second},
		Refresh: models.RefreshConfig{PollingInterval: time.Hour},
	}
	services, err := common.InitializeServices(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer services.Close()

	if services.Stream != nil {
		t.Error("stream subscriber must not be built when disabled")
	}
}

func TestPushedEventTriggersRefresh(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")
	account := srv.SeedAccount("jdoe", models.AccountTypeChecking, decimal.NewFromInt(100))

	services, _ := newStreamServices(t, srv)
	ctx := context.Background()
	if _, err := services.Session.Login(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Give the dial kicked off by the establish hook time to land.
	waitFor(t, 2*time.Second, func() bool { return srv.StreamConnCount() > 0 })

	srv.SetBalance(account.Id, decimal.NewFromInt(321))
	srv.PushAccountEvent(models.AccountEvent{
		Type:      models.AccountEventBalanceChanged,
		AccountId: account.Id,
	})

	waitFor(t, 2*time.Second, func() bool {
		cached := services.Cache.Snapshot()
		return len(cached) == 1 && cached[0].Balance.Equal(decimal.NewFromInt(321))
	})
}

func TestLogoutClosesStream(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")
	srv.SeedAccount("jdoe", models.AccountTypeChecking, decimal.NewFromInt(100))

	services, sink := newStreamServices(t, srv)
	ctx := context.Background()
	if _, err := services.Session.Login(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return srv.StreamConnCount() > 0 })

	services.Session.Logout(ctx)
	services.Stream.Wait()

	// A deliberate stop must not be reported as a disconnect.
	if got := sink.CountByLevel(notify.LevelWarning); got != 0 {
		t.Errorf("expected no disconnect warning after logout, got %d", got)
	}
}

func TestStreamStartRequiresSession(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	services, _ := newStreamServices(t, srv)
	if err := services.Stream.Start(context.Background()); err == nil {
		t.Fatal("starting the stream without a session must fail")
	}
	if srv.StreamConnCount() != 0 {
		t.Error("no websocket dial must happen without a session")
	}
}
