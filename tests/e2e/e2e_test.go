//go:build integration

package e2e

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"packline/internal/config"
	"packline/internal/infra"
	"packline/internal/middleware"
	"packline/internal/router"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
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

func mintToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: "e2e-" + role,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server     *httptest.Server
	supervisor string
	admin      string
	supplierID string
	productID  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("packline_test"),
		tcPostgres.WithUsername("packline"),
		tcPostgres.WithPassword("packline"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		LabelSidecarURL:    "http://localhost:9999", // unused here
		LabelStoragePath:   t.TempDir(),
		WorkerPoolSize:     1,
		LowStockThreshold:  3,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	require.NoError(t, infra.RunMigrations(db))

	supplierID := uuid.NewString()
	productID := uuid.NewString()
	require.NoError(t, db.Exec(`INSERT INTO suppliers (id, name, tax_id, email, is_active)
		VALUES (?, 'E2E Apparel', 'E2E-1', 'e2e@supplier.test', true)`, supplierID).Error)
	require.NoError(t, db.Exec(`INSERT INTO products (id, name, style, category, is_active)
		VALUES (?, 'E2E Tee', 'E2E-100', 'apparel', true)`, productID).Error)

	labelCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	r := router.New(cfg, db, rdb, labelCB)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{
		server:     srv,
		supervisor: mintToken(t, cfg.JWTSecret, middleware.RoleSupervisor),
		admin:      mintToken(t, cfg.JWTSecret, middleware.RoleAdmin),
		supplierID: supplierID,
		productID:  productID,
	}
}

func (env *testEnv) replenish(t *testing.T, quantity int) string {
	t.Helper()
	resp := do(t, env.server, "POST", "/v1/packets/replenish",
		jsonBody(t, map[string]any{
			"product_id":  env.productID,
			"supplier_id": env.supplierID,
			"composition": []map[string]any{
				{"size": "M", "color": "Red", "quantity": 3},
				{"size": "L", "color": "Blue", "quantity": 2},
			},
			"quantity":     quantity,
			"cost_price":   "30.00",
			"landed_price": "36.00",
			"source_ref":   "PO-E2E-1",
		}), env.supervisor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var packet struct {
		Barcode string `json:"barcode"`
	}
	decodeJSON(t, resp, &packet)
	require.NotEmpty(t, packet.Barcode)
	return packet.Barcode
}

// ── Tests ────────────────────────────────────────────────────────────────────

// Replenish twice, reserve, sell — the counters roll forward as one aggregate.
func TestE2E_ReplenishAndSellCycle(t *testing.T) {
	env := setupTestEnv(t)

	code := env.replenish(t, 10)
	again := env.replenish(t, 5)
	require.Equal(t, code, again)

	resp := do(t, env.server, "POST", "/v1/packets/"+code+"/reserve",
		jsonBody(t, map[string]any{"quantity": 4}), env.supervisor)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, env.server, "POST", "/v1/packets/"+code+"/sell",
		jsonBody(t, map[string]any{"quantity": 4}), env.supervisor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var packet struct {
		AvailablePackets int `json:"available_packets"`
		ReservedPackets  int `json:"reserved_packets"`
		SoldPackets      int `json:"sold_packets"`
	}
	decodeJSON(t, resp, &packet)
	assert.Equal(t, 11, packet.AvailablePackets)
	assert.Equal(t, 0, packet.ReservedPackets)
	assert.Equal(t, 4, packet.SoldPackets)
}

// Break one packet and verify the loose aggregates and the audit row land.
func TestE2E_BreakCreatesLooseStock(t *testing.T) {
	env := setupTestEnv(t)
	code := env.replenish(t, 2)

	resp := do(t, env.server, "POST", "/v1/packets/"+code+"/break",
		jsonBody(t, map[string]any{
			"items_to_remove": []map[string]any{{"size": "M", "color": "Red", "quantity": 1}},
			"notes":           "single item sold",
		}), env.supervisor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var breakResp struct {
		AvailablePackets int `json:"available_packets"`
		TotalRemoved     int `json:"total_removed"`
		LooseCreated     []struct {
			Barcode  string `json:"barcode"`
			Quantity int    `json:"quantity"`
		} `json:"loose_created"`
	}
	decodeJSON(t, resp, &breakResp)
	assert.Equal(t, 1, breakResp.AvailablePackets)
	assert.Equal(t, 1, breakResp.TotalRemoved)
	require.Len(t, breakResp.LooseCreated, 2)

	// Loose aggregates are queryable by their own barcodes.
	for _, loose := range breakResp.LooseCreated {
		lr := do(t, env.server, "GET", "/v1/packets/"+loose.Barcode, nil, env.supervisor)
		require.Equal(t, http.StatusOK, lr.StatusCode)
		var p struct {
			IsLoose          bool `json:"is_loose"`
			AvailablePackets int  `json:"available_packets"`
		}
		decodeJSON(t, lr, &p)
		assert.True(t, p.IsLoose)
		assert.Equal(t, loose.Quantity, p.AvailablePackets)
	}

	// Break history.
	hr := do(t, env.server, "GET", "/v1/packets/"+code+"/breaks", nil, env.supervisor)
	require.Equal(t, http.StatusOK, hr.StatusCode)
	var history struct {
		Total int64 `json:"total"`
	}
	decodeJSON(t, hr, &history)
	assert.Equal(t, int64(1), history.Total)
}

// Variant-mode return: dry-run plan, execute, then verify stock moved.
func TestE2E_VariantReturnExecution(t *testing.T) {
	env := setupTestEnv(t)
	code := env.replenish(t, 2)
	ref := uuid.NewString()

	returnReq := map[string]any{
		"mode":        "variant_composition",
		"product_id":  env.productID,
		"supplier_id": env.supplierID,
		"variants": []map[string]any{
			{"size": "M", "color": "Red", "quantity": 2},
		},
		"transaction_ref": ref,
	}

	planResp := do(t, env.server, "POST", "/v1/returns/plan", jsonBody(t, returnReq), env.supervisor)
	require.Equal(t, http.StatusOK, planResp.StatusCode)
	var plan struct {
		Valid       bool `json:"valid"`
		Adjustments []struct {
			Kind string `json:"kind"`
		} `json:"adjustments"`
	}
	decodeJSON(t, planResp, &plan)
	require.True(t, plan.Valid)
	require.Len(t, plan.Adjustments, 1)
	assert.Equal(t, "partial_break", plan.Adjustments[0].Kind)

	execResp := do(t, env.server, "POST", "/v1/returns", jsonBody(t, returnReq), env.supervisor)
	require.Equal(t, http.StatusOK, execResp.StatusCode)
	var result struct {
		Success       bool `json:"success"`
		ItemsReturned int  `json:"items_returned"`
	}
	decodeJSON(t, execResp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.ItemsReturned)

	gr := do(t, env.server, "GET", "/v1/packets/"+code, nil, env.supervisor)
	require.Equal(t, http.StatusOK, gr.StatusCode)
	var sealed struct {
		AvailablePackets int `json:"available_packets"`
	}
	decodeJSON(t, gr, &sealed)
	assert.Equal(t, 1, sealed.AvailablePackets)

	// One packet opened: 2 M/Red returned, 1 M/Red + 2 L/Blue now loose.
	sr := do(t, env.server, "GET",
		"/v1/returns/summary?product_id="+env.productID+"&supplier_id="+env.supplierID,
		nil, env.supervisor)
	require.Equal(t, http.StatusOK, sr.StatusCode)
	var summary struct {
		TotalSealedItems int `json:"total_sealed_items"`
		TotalLooseItems  int `json:"total_loose_items"`
	}
	decodeJSON(t, sr, &summary)
	assert.Equal(t, 5, summary.TotalSealedItems)
	assert.Equal(t, 3, summary.TotalLooseItems)
}

// Shortfalls roll the whole return back and surface as 422.
func TestE2E_ReturnShortfallRejected(t *testing.T) {
	env := setupTestEnv(t)
	code := env.replenish(t, 1)

	execResp := do(t, env.server, "POST", "/v1/returns",
		jsonBody(t, map[string]any{
			"mode":        "variant_composition",
			"product_id":  env.productID,
			"supplier_id": env.supplierID,
			"variants": []map[string]any{
				{"size": "M", "color": "Red", "quantity": 50},
			},
			"transaction_ref": uuid.NewString(),
		}), env.supervisor)
	assert.Equal(t, http.StatusUnprocessableEntity, execResp.StatusCode)
	execResp.Body.Close()

	gr := do(t, env.server, "GET", "/v1/packets/"+code, nil, env.supervisor)
	require.Equal(t, http.StatusOK, gr.StatusCode)
	var packet struct {
		AvailablePackets int `json:"available_packets"`
	}
	decodeJSON(t, gr, &packet)
	assert.Equal(t, 1, packet.AvailablePackets)
}

// Ledger reconciliation over real aggregates.
func TestE2E_AuditDiscrepancies(t *testing.T) {
	env := setupTestEnv(t)
	env.replenish(t, 2) // 10 items on the shelf

	ur := do(t, env.server, "PUT", "/v1/audit/balances/"+env.productID,
		jsonBody(t, map[string]any{"total_items": "7"}), env.admin)
	require.Equal(t, http.StatusOK, ur.StatusCode)
	ur.Body.Close()

	dr := do(t, env.server, "GET", "/v1/audit/discrepancies", nil, env.supervisor)
	require.Equal(t, http.StatusOK, dr.StatusCode)
	var out struct {
		Count int `json:"count"`
		Data  []struct {
			ProductID string `json:"product_id"`
			Direction string `json:"direction"`
		} `json:"data"`
	}
	decodeJSON(t, dr, &out)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, env.productID, out.Data[0].ProductID)
	assert.Equal(t, "stock_ahead", out.Data[0].Direction)
}

// Role gates: operators cannot replenish or execute returns.
func TestE2E_RoleEnforcement(t *testing.T) {
	env := setupTestEnv(t)
	operator := mintToken(t, "test-secret-key", middleware.RoleOperator)

	resp := do(t, env.server, "POST", "/v1/packets/replenish",
		jsonBody(t, map[string]any{}), operator)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/packets", nil, operator)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, "GET", "/v1/packets", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
