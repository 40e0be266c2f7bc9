//go:build integration

package router_test

// Runs the full HTTP stack against real Postgres and Redis.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"caixapdv/internal/config"
	"caixapdv/internal/infra"
	"caixapdv/internal/model"
	"caixapdv/internal/repository"
	"caixapdv/internal/router"
	"caixapdv/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func do(t *testing.T, srv *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

type summary struct {
	Register *struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		ClosingValues *struct {
			Expected       map[string]string `json:"expected"`
			Differences    map[string]string `json:"differences"`
			Classification string            `json:"classification"`
		} `json:"closing_values"`
	} `json:"register"`
	Financials struct {
		Sales   string            `json:"sales"`
		Methods map[string]string `json:"methods"`
	} `json:"financials"`
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	token  string // admin JWT
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("caixapdv_test"),
		tcPostgres.WithUsername("caixapdv"),
		tcPostgres.WithPassword("caixapdv"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgC) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(rdC) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                   "test",
		JWTSecret:             "test-secret-key",
		JWTExpirationHours:    8,
		JWTRefreshHours:       24,
		RateLimitAPI:          "10000-M",
		RateLimitLogin:        "100-M",
		ReportCacheTTLMinutes: 1,
	}

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	// Second run must be a no-op
	require.NoError(t, infra.RunMigrations(db))

	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-e2e-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	users := repository.NewUserRepository(db)
	require.NoError(t, users.Create(ctx, &model.User{
		ID: uuid.New(), Username: "admin", Name: "Admin E2E",
		PasswordHash: string(hash), Role: service.RoleAdmin, Active: true,
	}))

	orderRepo := repository.NewOrderRepository(db)
	events := infra.NewEventBus(rdb)
	registers := service.NewRegisterService(repository.NewRegisterRepository(db), orderRepo,
		events, nil, infra.NewCache(rdb, "test:"), time.Minute, nil)
	r, err := router.New(cfg, router.Deps{
		DB:        db,
		Redis:     rdb,
		Registers: registers,
		Orders:    service.NewOrderService(orderRepo, events, registers),
		Auth:   service.NewAuthService(users, cfg),
		Events: events,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	loginResp := do(t, srv, http.MethodPost, "/v1/auth/login",
		map[string]string{"username": "admin", "password": "admin-e2e-pass"}, "")
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var loginBody struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &loginBody)
	require.NotEmpty(t, loginBody.AccessToken)

	return &testEnv{server: srv, token: loginBody.AccessToken}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_RegisterLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	// 1. Open
	resp := do(t, env.server, http.MethodPost, "/v1/stores/loja-1/register/open",
		map[string]any{"initial_value": "50"}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened summary
	decodeJSON(t, resp, &opened)
	require.NotNil(t, opened.Register)
	regID := opened.Register.ID

	// 2. Second open in the same store conflicts
	resp = do(t, env.server, http.MethodPost, "/v1/stores/loja-1/register/open",
		map[string]any{"initial_value": "10"}, env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 3. A sale split between cash and pix
	resp = do(t, env.server, http.MethodPost, "/v1/stores/loja-1/orders", map[string]any{
		"type": "sale", "status": "Venda", "total": "150",
		"payments": []map[string]any{
			{"amount": "100", "method": "Dinheiro", "method_code": "cash"},
			{"amount": "50", "method": "Pix", "method_code": "pix"},
		},
	}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// 4. Withdrawal
	resp = do(t, env.server, http.MethodPost, "/v1/registers/"+regID+"/transactions", map[string]any{
		"description": "Sangria", "value": "20", "type": "remove",
	}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodGet, "/v1/stores/loja-1/register/active", nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active summary
	decodeJSON(t, resp, &active)
	assert.Equal(t, "150", active.Financials.Sales)
	assert.Equal(t, "130", active.Financials.Methods["Dinheiro"])
	assert.Equal(t, "50", active.Financials.Methods["Pix"])

	// 5. Close short by 10 in cash
	resp = do(t, env.server, http.MethodPost, "/v1/registers/"+regID+"/close", map[string]any{
		"informed": map[string]string{"Dinheiro": "120", "Pix": "50"},
	}, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var closed summary
	decodeJSON(t, resp, &closed)
	require.NotNil(t, closed.Register.ClosingValues)
	assert.Equal(t, "closed", closed.Register.Status)
	assert.Equal(t, "130", closed.Register.ClosingValues.Expected["Dinheiro"])
	assert.Equal(t, "-10", closed.Register.ClosingValues.Differences["Dinheiro"])

	// 6. Closed register accepts no more transactions
	resp = do(t, env.server, http.MethodPost, "/v1/registers/"+regID+"/transactions", map[string]any{
		"description": "Reforço", "value": "5", "type": "add",
	}, env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 7. Open a new one, then reopening the old one conflicts
	resp = do(t, env.server, http.MethodPost, "/v1/stores/loja-1/register/open",
		map[string]any{"initial_value": "0"}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodPost, "/v1/registers/"+regID+"/reopen", nil, env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 8. History lists the closed register
	resp = do(t, env.server, http.MethodGet, "/v1/stores/loja-1/register/history", nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist struct {
		Total int64 `json:"total"`
	}
	decodeJSON(t, resp, &hist)
	assert.Equal(t, int64(1), hist.Total)
}

func TestE2E_ConcurrentOpensLeaveOneOpenRegister(t *testing.T) {
	env := setupTestEnv(t)

	const n = 10
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := do(t, env.server, http.MethodPost, "/v1/stores/loja-2/register/open",
				map[string]any{"initial_value": "10"}, env.token)
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
}

func TestE2E_HealthAndAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodGet, "/v1/stores/loja-1/register/active", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodPost, "/v1/auth/login",
		map[string]string{"username": "admin", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
