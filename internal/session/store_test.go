package session_test

import (
	"context"
	"testing"
	"time"

	"bank-dashboard-client-go/internal/banktest"
	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/scheduler"
	"bank-dashboard-client-go/internal/tokenstore"
	"bank-dashboard-client-go/internal/transport"
)

func newTestServices(t *testing.T, srv *banktest.Server) (*common.Services, *notify.MemorySink) {
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
		Refresh: models.RefreshConfig{PollingInterval: 50 * time.Millisecond},
	}
	services, err := common.InitializeServices(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	t.Cleanup(services.Close)
	return services, sink
}

func TestLoginEstablishesSession(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, sink := newTestServices(t, srv)
	ctx := context.Background()

	sess, err := services.Session.Login(ctx, "jdoe", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected a token on the session")
	}
	if sess.User.Username != "jdoe" || sess.User.FirstName != "Jane" {
		t.Errorf("unexpected identity: %+v", sess.User)
	}

	// Token persisted to durable storage.
	saved, err := services.Tokens.Load(ctx)
	if err != nil {
		t.Fatalf("expected persisted token: %v", err)
	}
	if saved != sess.Token {
		t.Error("persisted token differs from session token")
	}

	if sink.CountByLevel(notify.LevelSuccess) != 1 {
		t.Errorf("expected exactly one success event, got %d", sink.CountByLevel(notify.LevelSuccess))
	}
}

func TestLoginRejectedLeavesNoSession(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, sink := newTestServices(t, srv)
	ctx := context.Background()

	_, err := services.Session.Login(ctx, "jdoe", "wrong")
	if !transport.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if services.Session.Current() != nil {
		t.Error("no session may exist after a rejected login")
	}
	if _, err := services.Tokens.Load(ctx); err != tokenstore.ErrNotFound {
		t.Errorf("no token may be persisted after a rejected login, got %v", err)
	}
	if sink.CountByLevel(notify.LevelError) != 1 {
		t.Errorf("expected exactly one error event, got %d", sink.CountByLevel(notify.LevelError))
	}
	if sink.CountByLevel(notify.LevelSuccess) != 0 {
		t.Error("a failed login must not publish a success event")
	}
}

// Startup with a persisted token the server rejects: the session ends
// up absent, the token is erased and no logged-in event is published.
func TestResumeWithRejectedToken(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, sink := newTestServices(t, srv)
	ctx := context.Background()

	if err := services.Tokens.Save(ctx, srv.IssueToken("jdoe", time.Hour)); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}
	srv.SetRejectAuth(true)

	sess, err := services.Session.Resume(ctx)
	if err == nil || sess != nil {
		t.Fatalf("expected resume to fail, got session %+v err %v", sess, err)
	}
	if services.Session.Current() != nil {
		t.Error("rejected token must not leave a session behind")
	}
	if _, err := services.Tokens.Load(ctx); err != tokenstore.ErrNotFound {
		t.Errorf("rejected token must be erased, got %v", err)
	}
	if services.Scheduler.State() != scheduler.Idle {
		t.Error("scheduler must stay idle when startup validation fails")
	}
	if sink.CountByLevel(notify.LevelSuccess) != 0 {
		t.Error("no success event may be published for a rejected token")
	}
}

func TestResumeWithoutPersistedToken(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	services, _ := newTestServices(t, srv)

	sess, err := services.Session.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume with empty storage must not error, got %v", err)
	}
	if sess != nil {
		t.Error("Resume with empty storage must not produce a session")
	}
}

func TestResumeWithValidToken(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, _ := newTestServices(t, srv)
	ctx := context.Background()

	if err := services.Tokens.Save(ctx, srv.IssueToken("jdoe", time.Hour)); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	sess, err := services.Session.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if sess == nil || sess.User.Username != "jdoe" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, _ := newTestServices(t, srv)
	ctx := context.Background()

	if _, err := services.Session.Login(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	services.Session.Logout(ctx)
	firstEpoch := services.Session.Epoch()
	services.Session.Logout(ctx)

	if services.Session.Current() != nil {
		t.Error("session must be absent after logout")
	}
	if services.Session.Epoch() != firstEpoch {
		t.Error("a second logout must not advance the epoch")
	}
	if _, err := services.Tokens.Load(ctx); err != tokenstore.ErrNotFound {
		t.Errorf("token must be erased after logout, got %v", err)
	}
	if services.Cache.Fetched() || len(services.Cache.Snapshot()) != 0 {
		t.Error("cache must be empty after logout")
	}
}

// The token and the identity are set together or not at all, at every
// observable point of the login flow.
func TestSessionInvariantDuringFailedIdentityFetch(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, _ := newTestServices(t, srv)
	ctx := context.Background()

	// Token validates but the identity fetch is rejected: login must
	// fail and leave nothing behind.
	token := srv.IssueToken("jdoe", time.Hour)
	srv.SetRejectAuth(true)
	if _, err := services.Session.ValidateExisting(ctx, token); err == nil {
		t.Fatal("expected validation to fail")
	}
	if services.Session.Current() != nil {
		t.Error("session must be absent when the identity could not be confirmed")
	}
}

func TestEnsureFailsFastWhenLoggedOut(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	services, _ := newTestServices(t, srv)

	err := services.Session.Ensure()
	if !transport.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestEnsureTearsDownExpiredSession(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")

	services, _ := newTestServices(t, srv)
	ctx := context.Background()

	// Valid for long enough to confirm the identity, then expired.
	token := srv.IssueToken("jdoe", 500*time.Millisecond)
	if _, err := services.Session.ValidateExisting(ctx, token); err != nil {
		t.Fatalf("ValidateExisting failed: %v", err)
	}
	time.Sleep(600 * time.Millisecond)

	err := services.Session.Ensure()
	if !transport.IsAuthError(err) {
		t.Fatalf("expected AuthError for expired session, got %v", err)
	}
	if services.Session.Current() != nil {
		t.Error("expired session must be torn down")
	}
}
