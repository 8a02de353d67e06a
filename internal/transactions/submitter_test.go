package transactions_test

import (
	"context"
	"testing"
	"time"

	"bank-dashboard-client-go/internal/banktest"
	"bank-dashboard-client-go/internal/common"
	"bank-dashboard-client-go/internal/models"
	"bank-dashboard-client-go/internal/notify"
	"bank-dashboard-client-go/internal/transactions"
	"bank-dashboard-client-go/internal/transport"

	"github.com/shopspring/decimal"
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
		Refresh: models.RefreshConfig{PollingInterval: time.Hour},
	}
	services, err := common.InitializeServices(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	t.Cleanup(services.Close)
	return services, sink
}

func seededServices(t *testing.T, srv *banktest.Server) (*common.Services, *notify.MemorySink, models.Account) {
	t.Helper()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")
	account := srv.SeedAccount("jdoe", models.AccountTypeChecking, decimal.NewFromInt(100))

	services, sink := newTestServices(t, srv)
	if _, err := services.Session.Login(context.Background(), "jdoe", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := services.Cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	sink.Reset()
	return services, sink, account
}

func TestValidationFailuresStayLocal(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	services, sink, account := seededServices(t, srv)

	tests := []struct {
		name string
		req  transactions.Request
	}{
		{
			name: "zero amount",
			req:  transactions.Request{Kind: transactions.KindDeposit, AccountId: account.Id},
		},
		{
			name: "negative amount",
			req: transactions.Request{
				Kind:      transactions.KindWithdrawal,
				AccountId: account.Id,
				Amount:    decimal.NewFromInt(-5),
			},
		},
		{
			name: "deposit without account",
			req:  transactions.Request{Kind: transactions.KindDeposit, Amount: decimal.NewFromInt(10)},
		},
		{
			name: "transfer missing destination",
			req: transactions.Request{
				Kind:          transactions.KindTransfer,
				FromAccountId: account.Id,
				Amount:        decimal.NewFromInt(10),
			},
		},
		{
			name: "transfer to same account",
			req: transactions.Request{
				Kind:          transactions.KindTransfer,
				FromAccountId: account.Id,
				ToAccountId:   account.Id,
				Amount:        decimal.NewFromInt(10),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink.Reset()
			before := srv.RequestCount("/transactions/deposit") +
				srv.RequestCount("/transactions/withdraw") +
				srv.RequestCount("/transactions/transfer")

			_, err := services.Submitter.Submit(context.Background(), tt.req)
			if !transport.IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			after := srv.RequestCount("/transactions/deposit") +
				srv.RequestCount("/transactions/withdraw") +
				srv.RequestCount("/transactions/transfer")
			if after != before {
				t.Error("validation failures must not reach the network")
			}
			if got := sink.CountByLevel(notify.LevelWarning); got != 1 {
				t.Errorf("expected one warning event, got %d", got)
			}
		})
	}
}

func TestWithdrawalUpdatesCacheAndNotifiesOnce(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	services, sink, account := seededServices(t, srv)
	listsBefore := srv.RequestCount("/accounts")

	record, err := services.Submitter.Submit(context.Background(), transactions.Request{
		Kind:        transactions.KindWithdrawal,
		AccountId:   account.Id,
		Amount:      decimal.NewFromInt(50),
		Description: "rent",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if record.TransactionType != models.TransactionTypeWithdrawal {
		t.Errorf("expected WITHDRAWAL record, got %q", record.TransactionType)
	}
	if record.Status != models.TransactionStatusCompleted {
		t.Errorf("expected COMPLETED status, got %q", record.Status)
	}
	if record.Reference == "" {
		t.Error("a reference must be generated when the caller omits one")
	}

	cached := services.Cache.Snapshot()
	if len(cached) != 1 || !cached[0].Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected cached balance 50 after refetch, got %+v", cached)
	}
	if got := srv.RequestCount("/accounts"); got != listsBefore+1 {
		t.Errorf("expected exactly one follow-up account fetch, got %d", got-listsBefore)
	}
	if got := sink.CountByLevel(notify.LevelSuccess); got != 1 {
		t.Errorf("expected exactly one success event, got %d", got)
	}
}

func TestInsufficientFundsLeavesCacheIntact(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.CreateUser("jdoe", "secret", "Jane", "Doe", "jane@example.com")
	from := srv.SeedAccount("jdoe", models.AccountTypeChecking, decimal.NewFromInt(30))
	to := srv.SeedAccount("jdoe", models.AccountTypeSavings, decimal.NewFromInt(0))

	services, sink := newTestServices(t, srv)
	if _, err := services.Session.Login(context.Background(), "jdoe", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := services.Cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	sink.Reset()
	listsBefore := srv.RequestCount("/accounts")

	_, err := services.Submitter.Submit(context.Background(), transactions.Request{
		Kind:          transactions.KindTransfer,
		FromAccountId: from.Id,
		ToAccountId:   to.Id,
		Amount:        decimal.NewFromInt(500),
	})
	if !transport.IsServerError(err) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if got := transport.UserMessage(err, ""); got != "Insufficient funds" {
		t.Errorf("expected server rejection message, got %q", got)
	}

	if got := srv.RequestCount("/transactions/transfer"); got != 1 {
		t.Errorf("a rejected submission must not be retried, got %d calls", got)
	}
	if got := srv.RequestCount("/accounts"); got != listsBefore {
		t.Error("a failed submission must not trigger a refetch")
	}
	for _, cached := range services.Cache.Snapshot() {
		if cached.Id == from.Id && !cached.Balance.Equal(decimal.NewFromInt(30)) {
			t.Errorf("cached source balance changed, got %s", cached.Balance)
		}
	}
	if got := sink.CountByLevel(notify.LevelError); got != 1 {
		t.Errorf("expected exactly one error event, got %d", got)
	}
}

func TestSubmitWithExpiredSessionFailsFast(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	services, sink, account := seededServices(t, srv)

	services.Session.Logout(context.Background())
	sink.Reset()

	_, err := services.Submitter.Submit(context.Background(), transactions.Request{
		Kind:      transactions.KindDeposit,
		AccountId: account.Id,
		Amount:    decimal.NewFromInt(10),
	})
	if !transport.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if got := srv.RequestCount("/transactions/deposit"); got != 0 {
		t.Errorf("submit without a session must not reach the network, got %d calls", got)
	}
	if got := sink.CountByLevel(notify.LevelError); got != 1 {
		t.Errorf("expected exactly one error event, got %d", got)
	}
}

func TestHistoryReturnsAccountActivity(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	services, _, account := seededServices(t, srv)
	ctx := context.Background()

	for _, amount := range []int64{25, 10} {
		if _, err := services.Submitter.Submit(ctx, transactions.Request{
			Kind:      transactions.KindDeposit,
			AccountId: account.Id,
			Amount:    decimal.NewFromInt(amount),
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	history, err := services.Submitter.History(ctx, account.Id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	for _, record := range history {
		if record.Direction(account.Id) != "+" {
			t.Errorf("deposit must read as incoming, got %q", record.Direction(account.Id))
		}
	}

	if _, err := services.Submitter.History(ctx, 0); !transport.IsValidationError(err) {
		t.Errorf("expected ValidationError for missing account, got %v", err)
	}
}
