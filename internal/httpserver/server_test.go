package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamaanahmad/agentmarket/internal/auth"
	"github.com/iamaanahmad/agentmarket/internal/config"
	"github.com/iamaanahmad/agentmarket/internal/escrow"
	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/httpserver"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/registry"
	"github.com/iamaanahmad/agentmarket/internal/reputation"
	"github.com/iamaanahmad/agentmarket/internal/royalty"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	_, err := st.EnsureRoyaltyConfig(context.Background(), models.RoyaltyConfig{
		CreatorShare:    85,
		PlatformShare:   10,
		TreasuryShare:   5,
		PlatformAccount: "platform",
		TreasuryAccount: "treasury",
	})
	require.NoError(t, err)

	cfg := config.Config{AllowDebugPrincipal: true}
	emitter := events.NewMemoryEmitter()
	reg := registry.New(st, emitter)
	dist := royalty.New(st, emitter)
	esc := escrow.New(st, dist, emitter, false)
	rep := reputation.New(st, emitter)

	server := httptest.NewServer(httpserver.New(cfg, reg, esc, rep, dist, st).Router())
	t.Cleanup(server.Close)
	return &testServer{Server: server, t: t}
}

// do performs a request as the given principal (with optional roles) and
// decodes the JSON response into out when out is non-nil.
func (s *testServer) do(method, path, principal, roles string, body interface{}, out interface{}) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(s.t, err)
	if principal != "" {
		req.Header.Set("X-Debug-Principal", principal)
	}
	if roles != "" {
		req.Header.Set("X-Debug-Roles", roles)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnauthenticatedRejected(t *testing.T) {
	s := newTestServer(t)
	code := s.do(http.MethodPost, "/registry/agents", "", "", map[string]string{"metadataUri": "ipfs://m"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFullMarketplaceFlow(t *testing.T) {
	s := newTestServer(t)

	var agent models.Agent
	code := s.do(http.MethodPost, "/registry/agents", "creator-1", "",
		map[string]string{"metadataUri": "ipfs://agent"}, &agent)
	require.Equal(t, http.StatusCreated, code)

	var acct models.Account
	code = s.do(http.MethodPost, "/accounts/deposit", "payer-1", "",
		map[string]int64{"amount": 1000}, &acct)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1000), acct.Balance)

	var req models.EscrowRequest
	code = s.do(http.MethodPost, "/escrow/requests", "payer-1", "",
		map[string]interface{}{"agentId": agent.ID, "amount": 100}, &req)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, models.StateOpen, req.State)

	code = s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/result", req.ID), "creator-1", "",
		map[string]string{"resultRef": "s3://results/1"}, nil)
	require.Equal(t, http.StatusOK, code)

	var approved struct {
		Request      models.EscrowRequest `json:"request"`
		Distribution models.Distribution  `json:"distribution"`
	}
	code = s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/approve", req.ID), "payer-1", "",
		nil, &approved)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StateApproved, approved.Request.State)
	assert.Equal(t, int64(85), approved.Distribution.CreatorAmount)

	var rating models.Rating
	code = s.do(http.MethodPost, "/reputation/ratings", "payer-1", "",
		map[string]interface{}{"requestId": req.ID, "stars": 5, "quality": 4, "speed": 5, "value": 4}, &rating)
	require.Equal(t, http.StatusCreated, code)

	var agg models.Aggregate
	code = s.do(http.MethodGet, fmt.Sprintf("/reputation/agents/%s", agent.ID), "anyone", "", nil, &agg)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), agg.Count)
	assert.Equal(t, int64(500), agg.Score)

	var stats map[string]interface{}
	code = s.do(http.MethodGet, "/royalty/stats", "anyone", "", nil, &stats)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), stats["totalDistributed"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	s := newTestServer(t)

	var agent models.Agent
	code := s.do(http.MethodPost, "/registry/agents", "creator-1", "",
		map[string]string{"metadataUri": "ipfs://agent"}, &agent)
	require.Equal(t, http.StatusCreated, code)
	s.do(http.MethodPost, "/accounts/deposit", "payer-1", "", map[string]int64{"amount": 500}, nil)

	var req models.EscrowRequest
	code = s.do(http.MethodPost, "/escrow/requests", "payer-1", "",
		map[string]interface{}{"agentId": agent.ID, "amount": 100}, &req)
	require.Equal(t, http.StatusCreated, code)
	s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/result", req.ID), "creator-1", "",
		map[string]string{"resultRef": "ref"}, nil)
	s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/dispute", req.ID), "payer-1", "",
		map[string]string{"reason": "wrong output"}, nil)

	resolvePath := fmt.Sprintf("/escrow/requests/%s/resolve", req.ID)
	code = s.do(http.MethodPost, resolvePath, "payer-1", "", map[string]string{"outcome": "refund"}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code = s.do(http.MethodPost, resolvePath, "admin-1", auth.RolePlatformAdmin,
		map[string]string{"outcome": "refund"}, nil)
	assert.Equal(t, http.StatusOK, code)

	code = s.do(http.MethodPost, "/royalty/pause", "payer-1", "", map[string]bool{"paused": true}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code = s.do(http.MethodPost, "/royalty/pause", "admin-1", auth.RolePlatformAdmin,
		map[string]bool{"paused": true}, nil)
	assert.Equal(t, http.StatusOK, code)

	split := map[string]int{"creatorShare": 70, "platformShare": 20, "treasuryShare": 10}
	code = s.do(http.MethodPost, "/royalty/config", "payer-1", "", split, nil)
	assert.Equal(t, http.StatusForbidden, code)
	var cfg models.RoyaltyConfig
	code = s.do(http.MethodPost, "/royalty/config", "admin-1", auth.RolePlatformAdmin, split, &cfg)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 70, cfg.CreatorShare)

	bad := map[string]int{"creatorShare": 70, "platformShare": 20, "treasuryShare": 20}
	code = s.do(http.MethodPost, "/royalty/config", "admin-1", auth.RolePlatformAdmin, bad, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReportRatingRoute(t *testing.T) {
	s := newTestServer(t)

	var agent models.Agent
	code := s.do(http.MethodPost, "/registry/agents", "creator-1", "",
		map[string]string{"metadataUri": "ipfs://agent"}, &agent)
	require.Equal(t, http.StatusCreated, code)
	s.do(http.MethodPost, "/accounts/deposit", "payer-1", "", map[string]int64{"amount": 500}, nil)

	var req models.EscrowRequest
	code = s.do(http.MethodPost, "/escrow/requests", "payer-1", "",
		map[string]interface{}{"agentId": agent.ID, "amount": 100}, &req)
	require.Equal(t, http.StatusCreated, code)
	s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/result", req.ID), "creator-1", "",
		map[string]string{"resultRef": "ref"}, nil)
	s.do(http.MethodPost, fmt.Sprintf("/escrow/requests/%s/approve", req.ID), "payer-1", "", nil, nil)

	var rating models.Rating
	code = s.do(http.MethodPost, "/reputation/ratings", "payer-1", "",
		map[string]interface{}{"requestId": req.ID, "stars": 5, "quality": 5, "speed": 5, "value": 5}, &rating)
	require.Equal(t, http.StatusCreated, code)

	// Any authenticated caller may report; no role needed.
	var reported models.Rating
	code = s.do(http.MethodPost, fmt.Sprintf("/reputation/ratings/%s/report", rating.ID), "someone-else", "",
		map[string]string{"reason": "spam"}, &reported)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reported.Reported)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	// Unknown agent id is 404.
	code := s.do(http.MethodGet, "/registry/agents/6ba7b810-9dad-11d1-80b4-00c04fd430c8", "anyone", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Malformed id is 400.
	code = s.do(http.MethodGet, "/registry/agents/not-a-uuid", "anyone", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Insufficient funds is 409.
	var agent models.Agent
	code = s.do(http.MethodPost, "/registry/agents", "creator-1", "",
		map[string]string{"metadataUri": "ipfs://agent"}, &agent)
	require.Equal(t, http.StatusCreated, code)
	code = s.do(http.MethodPost, "/escrow/requests", "payer-1", "",
		map[string]interface{}{"agentId": agent.ID, "amount": 100}, nil)
	assert.Equal(t, http.StatusConflict, code)

	// Reading someone else's account is forbidden without the admin role.
	code = s.do(http.MethodGet, "/accounts/creator-1", "payer-1", "", nil, nil)
	assert.Equal(t, http.StatusForbidden, code)
}
