package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/memquery/config"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/expr"
	"github.com/guileen/memquery/store"
)

func setupTestServer(t *testing.T, opts exec.Options) *httptest.Server {
	t.Helper()
	s, err := store.Open(store.TestOptions())
	require.NoError(t, err)
	compiler, err := expr.NewCompiler(16)
	require.NoError(t, err)

	ts := httptest.NewServer(NewRouter(NewHandler(s, compiler, opts)))
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const ordersDoc = `{
	"columns": [{"name": "oid"}, {"name": "customer"}, {"name": "amount"}],
	"rows": [[1, "ann", 30], [2, "bob", 5], [3, "ann", 12]]
}`

func TestRelationsLifecycle(t *testing.T) {
	ts := setupTestServer(t, exec.DefaultOptions())

	resp, body := do(t, http.MethodPut, ts.URL+"/api/relations/orders", ordersDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var put PutResponse
	require.NoError(t, json.Unmarshal(body, &put))
	assert.Equal(t, PutResponse{Name: "orders", Rows: 3}, put)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/relations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"relations": ["orders"]}`, string(body))

	resp, body = do(t, http.MethodGet, ts.URL+"/api/relations/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{
		"name": "orders",
		"columns": [{"name": "oid", "type": "bigint"}, {"name": "customer", "type": "string"}, {"name": "amount", "type": "bigint"}],
		"rows": [[1, "ann", 30], [2, "bob", 5], [3, "ann", 12]]
	}`, string(body))

	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/relations/orders", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/relations/orders", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/relations/orders", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"unknown_relation"`)
}

func TestPutRelation_BadDocuments(t *testing.T) {
	ts := setupTestServer(t, exec.DefaultOptions())

	resp, _ := do(t, http.MethodPut, ts.URL+"/api/relations/orders", `{"name": "other", "columns": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/relations/orders", `{"columns": [{"name": "a"}], "rows": [[1, 2]]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/relations/orders", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery(t *testing.T) {
	ts := setupTestServer(t, exec.DefaultOptions())
	resp, _ := do(t, http.MethodPut, ts.URL+"/api/relations/orders", ordersDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	query := `{
		"relations": [{"name": "customers", "columns": [{"name": "customer"}, {"name": "city"}],
			"rows": [["ann", "oslo"], ["bob", "rome"]]}],
		"plan": {"op": "aggregate", "group_by": ["city"],
			"aggregations": [{"kind": "sum", "column": "amount", "as": "total"}],
			"input": {"op": "natural_join",
				"left": {"op": "scan", "relation": "orders"},
				"right": {"op": "scan", "relation": "customers"}}}
	}`
	resp, body := do(t, http.MethodPost, ts.URL+"/api/query", query)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out QueryResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.QueryID)
	assert.Equal(t, out.QueryID, resp.Header.Get("X-Query-ID"))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, [][]any{{"oslo", float64(42)}, {"rome", float64(5)}}, out.Result.Rows)

	// inline relations are not stored
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/relations/customers", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuery_Errors(t *testing.T) {
	ts := setupTestServer(t, exec.Options{MaxRows: 1})
	resp, _ := do(t, http.MethodPut, ts.URL+"/api/relations/orders", ordersDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid plan", `{"plan": {"op": "scan"}}`, http.StatusBadRequest, "invalid_plan"},
		{"missing plan", `{}`, http.StatusBadRequest, ""},
		{"unknown relation", `{"plan": {"op": "scan", "relation": "nope"}}`, http.StatusNotFound, "unknown_relation"},
		{"unknown column", `{"plan": {"op": "project", "columns": ["x"], "input": {"op": "scan", "relation": "orders"}}}`, http.StatusBadRequest, "unknown_column"},
		{"row limit", `{"plan": {"op": "scan", "relation": "orders"}}`, http.StatusUnprocessableEntity, "row_limit_exceeded"},
		{"evaluation", `{"plan": {"op": "select", "predicate": "amount / 0 > 1", "input": {"op": "scan", "relation": "orders"}}}`, http.StatusUnprocessableEntity, "evaluation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+"/api/query", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			var e ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e.Error)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestExplain(t *testing.T) {
	ts := setupTestServer(t, exec.DefaultOptions())
	resp, _ := do(t, http.MethodPut, ts.URL+"/api/relations/orders", ordersDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/explain",
		`{"plan": {"op": "project", "columns": ["oid"], "input": {"op": "scan", "relation": "orders"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out ExplainResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "  Value orders(oid bigint, customer string, amount bigint)\nProjection[oid] -> orders(oid bigint)", strings.TrimRight(out.Plan, "\n"))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupTestServer(t, exec.DefaultOptions())

	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp, body = do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "memquery_http_requests_total")
}

func TestServer_RunAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(config.ServerConfig{ShutdownTimeout: time.Second}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Post("http://"+ln.Addr().String(), "text/plain", bytes.NewReader(nil))
		return err == nil
	}, time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
