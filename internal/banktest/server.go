// Package banktest provides an in-process fake of the banking API for
// tests: real HTTP, real bearer tokens, simplified ledger semantics.
// The fake enforces the invariants the client relies on the server
// for, notably balance non-negativity and atomic transfers.
package banktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"bank-dashboard-client-go/internal/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type userRecord struct {
	identity models.UserIdentity
	password string
}

type accountRecord struct {
	account models.Account
	ownerId int64
}

// Server is the fake banking API.
type Server struct {
	httpServer *httptest.Server
	secret     []byte
	tokenTTL   time.Duration

	mu            sync.Mutex
	users         map[string]*userRecord
	accounts      map[int64]*accountRecord
	history       map[int64][]models.TransactionRecord
	nextUserId    int64
	nextAccountId int64
	nextTxId      int64
	rejectAuth    bool
	requests      map[string]int

	// ListAccountsHook, when set, runs before GET /accounts responds.
	// Tests use it to stall a fetch and provoke response races.
	ListAccountsHook func()

	wsUpgrader websocket.Upgrader
	wsConns    []*websocket.Conn
}

func NewServer() *Server {
	s := &Server{
		secret:   []byte("banktest-secret"),
		tokenTTL: time.Hour,
		users:    make(map[string]*userRecord),
		accounts: make(map[int64]*accountRecord),
		history:  make(map[int64][]models.TransactionRecord),
		requests: make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/users/me", s.authed(s.handleCurrentUser)).Methods(http.MethodGet)
	r.HandleFunc("/accounts", s.authed(s.handleListAccounts)).Methods(http.MethodGet)
	r.HandleFunc("/accounts", s.authed(s.handleCreateAccount)).Methods(http.MethodPost)
	r.HandleFunc("/transactions/deposit", s.authed(s.handleDeposit)).Methods(http.MethodPost)
	r.HandleFunc("/transactions/withdraw", s.authed(s.handleWithdraw)).Methods(http.MethodPost)
	r.HandleFunc("/transactions/transfer", s.authed(s.handleTransfer)).Methods(http.MethodPost)
	r.HandleFunc("/transactions/history/{accountId}", s.authed(s.handleHistory)).Methods(http.MethodGet)
	r.HandleFunc("/ws/accounts", s.handleStream)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			s.requests[req.URL.Path]++
			s.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL returns the API base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

func (s *Server) Close() {
	s.mu.Lock()
	conns := s.wsConns
	s.wsConns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	s.httpServer.Close()
}

// --- test control -----------------------------------------------------------

// CreateUser registers a user directly, bypassing the signup endpoint.
func (s *Server) CreateUser(username, password, firstName, lastName, email string) models.UserIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserId++
	rec := &userRecord{
		identity: models.UserIdentity{
			Id:        s.nextUserId,
			FirstName: firstName,
			LastName:  lastName,
			Username:  username,
			Email:     email,
		},
		password: password,
	}
	s.users[username] = rec
	return rec.identity
}

// SeedAccount creates an account with the given balance for a user.
func (s *Server) SeedAccount(username, accountType string, balance decimal.Decimal) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		panic(fmt.Sprintf("banktest: unknown user %q", username))
	}
	return s.addAccountLocked(user.identity.Id, accountType, balance)
}

// SetBalance overwrites an account balance, simulating server-side
// activity the client has not observed yet.
func (s *Server) SetBalance(accountId int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.accounts[accountId]; ok {
		rec.account.Balance = balance
	}
}

// SetRejectAuth makes every authenticated call fail with 401,
// simulating server-side token revocation or expiry.
func (s *Server) SetRejectAuth(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = reject
}

// RequestCount returns how many requests hit the given path.
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// IssueToken mints a valid token for a user, as login would.
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("banktest: unable to sign token: %v", err))
	}
	return token
}

// StreamConnCount returns the number of accepted stream connections.
func (s *Server) StreamConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wsConns)
}

// PushAccountEvent broadcasts an event to all stream subscribers.
func (s *Server) PushAccountEvent(event models.AccountEvent) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, len(s.wsConns))
	copy(conns, s.wsConns)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.WriteJSON(event)
	}
}

// --- handlers ---------------------------------------------------------------

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	s.mu.Lock()
	user, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || user.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, models.JwtResponse{
		AccessToken: s.IssueToken(req.Username, s.tokenTTL),
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		User:        user.identity,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	_, exists := s.users[req.Username]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "Username is already taken")
		return
	}

	s.CreateUser(req.Username, req.Password, req.FirstName, req.LastName, req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

// authed wraps a handler with bearer-token verification.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, *userRecord)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) authenticate(r *http.Request) (*userRecord, bool) {
	s.mu.Lock()
	reject := s.rejectAuth
	s.mu.Unlock()
	if reject {
		return nil, false
	}

	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(header[len(prefix):], claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	s.mu.Lock()
	user, ok := s.users[claims.Subject]
	s.mu.Unlock()
	return user, ok
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, _ *http.Request, user *userRecord) {
	writeJSON(w, http.StatusOK, user.identity)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request, user *userRecord) {
	if hook := s.ListAccountsHook; hook != nil {
		hook()
	}

	s.mu.Lock()
	out := s.userAccountsLocked(user.identity.Id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, user *userRecord) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}
	if req.AccountType == "" {
		writeError(w, http.StatusBadRequest, "Account type is required")
		return
	}

	s.mu.Lock()
	account := s.addAccountLocked(user.identity.Id, req.AccountType, decimal.Zero)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, user *userRecord) {
	var req models.MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.ownedAccountLocked(user, req.AccountId)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	rec.account.Balance = rec.account.Balance.Add(req.Amount)
	record := s.recordLocked(models.TransactionTypeDeposit, req.Amount, req.Description, req.Reference, nil, &rec.account)
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, user *userRecord) {
	var req models.MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.ownedAccountLocked(user, req.AccountId)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	if rec.account.Balance.LessThan(req.Amount) {
		writeError(w, http.StatusBadRequest, "Insufficient funds")
		return
	}

	rec.account.Balance = rec.account.Balance.Sub(req.Amount)
	record := s.recordLocked(models.TransactionTypeWithdrawal, req.Amount, req.Description, req.Reference, &rec.account, nil)
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, user *userRecord) {
	var req models.TransferWireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.ownedAccountLocked(user, req.FromAccountId)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	to, ok := s.accounts[req.ToAccountId]
	if !ok {
		writeError(w, http.StatusNotFound, "Destination account not found")
		return
	}
	if req.FromAccountId == req.ToAccountId {
		writeError(w, http.StatusBadRequest, "Cannot transfer to the same account")
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	if from.account.Balance.LessThan(req.Amount) {
		writeError(w, http.StatusBadRequest, "Insufficient funds")
		return
	}

	// Both legs or neither.
	from.account.Balance = from.account.Balance.Sub(req.Amount)
	to.account.Balance = to.account.Balance.Add(req.Amount)
	record := s.recordLocked(models.TransactionTypeTransfer, req.Amount, req.Description, req.Reference, &from.account, &to.account)
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, user *userRecord) {
	accountId, err := strconv.ParseInt(mux.Vars(r)["accountId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedAccountLocked(user, accountId); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	records := s.history[accountId]
	out := make([]models.TransactionRecord, len(records))
	copy(out, records)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.wsConns = append(s.wsConns, conn)
	s.mu.Unlock()
}

// --- internals --------------------------------------------------------------

func (s *Server) addAccountLocked(ownerId int64, accountType string, balance decimal.Decimal) models.Account {
	s.nextAccountId++
	account := models.Account{
		Id:            s.nextAccountId,
		AccountNumber: fmt.Sprintf("ACC%010d", s.nextAccountId),
		AccountType:   accountType,
		Balance:       balance,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	s.accounts[account.Id] = &accountRecord{account: account, ownerId: ownerId}
	return account
}

func (s *Server) userAccountsLocked(userId int64) []models.Account {
	out := []models.Account{}
	for id := int64(1); id <= s.nextAccountId; id++ {
		if rec, ok := s.accounts[id]; ok && rec.ownerId == userId {
			out = append(out, rec.account)
		}
	}
	return out
}

func (s *Server) ownedAccountLocked(user *userRecord, accountId int64) (*accountRecord, error) {
	rec, ok := s.accounts[accountId]
	if !ok || rec.ownerId != user.identity.Id {
		return nil, fmt.Errorf("Account not found")
	}
	return rec, nil
}

func (s *Server) recordLocked(txType string, amount decimal.Decimal, description, reference string, from, to *models.Account) models.TransactionRecord {
	s.nextTxId++
	record := models.TransactionRecord{
		Id:              s.nextTxId,
		TransactionType: txType,
		Amount:          amount,
		Description:     description,
		Reference:       reference,
		Status:          models.TransactionStatusCompleted,
		CreatedAt:       time.Now().UTC(),
	}
	if from != nil {
		record.FromAccount = &models.AccountRef{Id: from.Id, AccountNumber: from.AccountNumber, AccountType: from.AccountType}
		s.history[from.Id] = append(s.history[from.Id], record)
	}
	if to != nil {
		record.ToAccount = &models.AccountRef{Id: to.Id, AccountNumber: to.AccountNumber, AccountType: to.AccountType}
		s.history[to.Id] = append(s.history[to.Id], record)
	}
	return record
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.APIError{Message: message})
}
