package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/startreedata/warehouse-gateway/codec"
	"github.com/startreedata/warehouse-gateway/gateway"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) RunQuery(ctx context.Context, text string, limit int) (*gateway.ResultSet, error) {
	args := m.Called(ctx, text, limit)
	result, _ := args.Get(0).(*gateway.ResultSet)
	return result, args.Error(1)
}

func (m *mockGateway) RunAdHocQuery(ctx context.Context, text string, maxRows int) (*gateway.ResultSet, error) {
	args := m.Called(ctx, text, maxRows)
	result, _ := args.Get(0).(*gateway.ResultSet)
	return result, args.Error(1)
}

func (m *mockGateway) Target(ctx context.Context) (gateway.ResolvedTarget, error) {
	args := m.Called(ctx)
	return args.Get(0).(gateway.ResolvedTarget), args.Error(1)
}

func (m *mockGateway) Connected() bool {
	return m.Called().Bool(0)
}

func (m *mockGateway) Catalog() gateway.CatalogBrowser {
	return gateway.NewCatalog(m)
}

func newSQLiteGateway(t *testing.T) *gateway.Gateway {
	gw, err := gateway.NewWithConfig(&gateway.Config{Driver: gateway.DriverSQLite, SQLiteDSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = gw.Close()
	})
	return gw
}

func newTestServer(t *testing.T, gw QueryGateway) *Server {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = listener.Close()
	})
	srv, err := New(Config{HTTPListener: listener, Gateway: gw})
	require.NoError(t, err)
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	assert.EqualError(t, cfg.Validate(), "http listener is required")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	cfg.HTTPListener = listener
	assert.EqualError(t, cfg.Validate(), "gateway is required")

	cfg.Gateway = &mockGateway{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestRunEndpointReturnsRows(t *testing.T) {
	srv := newTestServer(t, newSQLiteGateway(t))

	rec := postJSON(t, srv.Handler(), "/api/v1/sql/run", `{"query": "SELECT 1 AS n, 'a' AS s;", "max_rows": 10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result gateway.ResultSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"n", "s"}, result.Columns)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, gateway.Int(1), result.Rows[0]["n"])
	assert.Equal(t, gateway.String("a"), result.Rows[0]["s"])
}

func TestRunEndpointErrorStatuses(t *testing.T) {
	srv := newTestServer(t, newSQLiteGateway(t))
	handler := srv.Handler()

	rec := postJSON(t, handler, "/api/v1/sql/run", `{"query": "DELETE FROM t"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "Statement type 'delete' is not allowed."}`, rec.Body.String())

	rec = postJSON(t, handler, "/api/v1/sql/run", `{"query": "   ;  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "Query cannot be empty."}`, rec.Body.String())

	rec = postJSON(t, handler, "/api/v1/sql/run", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/api/v1/sql/run", `{"query": "SELECT * FROM no_such_table"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_such_table")
}

func TestRunEndpointUnavailableWarehouse(t *testing.T) {
	gw := &mockGateway{}
	unavailable := &gateway.Error{Kind: gateway.KindNoEndpointAvailable, Message: "No SQL warehouse available. Set DATABRICKS_WAREHOUSE_ID."}
	gw.On("RunAdHocQuery", mock.Anything, "SELECT 1", 0).Return(nil, unavailable)
	gw.On("Target", mock.Anything).Return(gateway.ResolvedTarget{}, unavailable)
	srv := newTestServer(t, gw)

	rec := postJSON(t, srv.Handler(), "/api/v1/sql/run", `{"query": "SELECT 1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail": "No SQL warehouse available. Set DATABRICKS_WAREHOUSE_ID."}`, rec.Body.String())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.health.status())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/warehouse", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	gw.AssertExpectations(t)
}

func TestRunEndpointCompressesLargeBodies(t *testing.T) {
	gw := &mockGateway{}
	result := &gateway.ResultSet{Columns: []string{"text"}}
	for i := 0; i < 200; i++ {
		result.Rows = append(result.Rows, gateway.Row{"text": gateway.String("warehouse row")})
	}
	result.Count = len(result.Rows)
	gw.On("RunAdHocQuery", mock.Anything, "SELECT text FROM t", 200).Return(result, nil)
	srv := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sql/run", strings.NewReader(`{"query": "SELECT text FROM t", "max_rows": 200}`))
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))

	decoder, err := zstd.NewReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer decoder.Close()
	body, err := io.ReadAll(decoder)
	require.NoError(t, err)
	var decoded gateway.ResultSet
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, 200, decoded.Count)
}

func TestNegotiateEncoding(t *testing.T) {
	testCases := []struct {
		header          string
		contentEncoding string
		compression     string
	}{
		{"", "", codec.CompressionNone},
		{"gzip", "gzip", codec.CompressionGzip},
		{"gzip, deflate, br, zstd", "zstd", codec.CompressionZstd},
		{"zstd;q=0, gzip", "gzip", codec.CompressionGzip},
		{"br", "", codec.CompressionNone},
	}
	for _, tc := range testCases {
		contentEncoding, compression := negotiateEncoding(tc.header)
		assert.Equal(t, tc.contentEncoding, contentEncoding, tc.header)
		assert.Equal(t, tc.compression, compression, tc.header)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t, newSQLiteGateway(t))

	for _, compression := range []string{"", "lz4", "snappy", "zstd", "gzip", "deflate"} {
		rec := postJSON(t, srv.Handler(), "/api/v1/sql/export?compression="+compression, `{"query": "SELECT 1 AS n, 'a' AS s", "max_rows": 5}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, codec.ArrowContentType, rec.Header().Get("Content-Type"))

		algorithm := rec.Header().Get("X-Arrow-Compression")
		payload, err := codec.Decompress(rec.Body.Bytes(), algorithm)
		require.NoError(t, err, compression)
		result, err := codec.DecodeArrow(payload)
		require.NoError(t, err, compression)
		assert.Equal(t, []string{"n", "s"}, result.Columns)
		assert.Equal(t, gateway.Int(1), result.Rows[0]["n"])
		assert.Equal(t, gateway.String("a"), result.Rows[0]["s"])
	}

	rec := postJSON(t, srv.Handler(), "/api/v1/sql/export?compression=brotli", `{"query": "SELECT 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail": "unsupported compression: brotli"}`, rec.Body.String())
}

func TestWarehouseEndpoint(t *testing.T) {
	srv := newTestServer(t, newSQLiteGateway(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/warehouse", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"host": "localhost", "httpPath": "/sql/1.0/warehouses/local", "warehouseId": "local"}`, rec.Body.String())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.health.status())
}

func TestCatalogEndpoints(t *testing.T) {
	gw := &mockGateway{}
	gw.On("RunQuery", mock.Anything, "SHOW CATALOGS", gateway.HardRowCeiling).Return(&gateway.ResultSet{
		Columns: []string{"catalog"},
		Rows:    []gateway.Row{{"catalog": gateway.String("main")}, {"catalog": gateway.String("samples")}},
		Count:   2,
	}, nil)
	gw.On("RunQuery", mock.Anything, "SHOW SCHEMAS IN `samples`", gateway.HardRowCeiling).Return(&gateway.ResultSet{
		Columns: []string{"databaseName"},
		Rows:    []gateway.Row{{"databaseName": gateway.String("nyctaxi")}},
		Count:   1,
	}, nil)
	gw.On("RunQuery", mock.Anything, "SHOW TABLES IN `samples`.`nyctaxi`", gateway.HardRowCeiling).Return(&gateway.ResultSet{
		Columns: []string{"database", "tableName", "isTemporary"},
		Rows: []gateway.Row{{
			"database":    gateway.String("nyctaxi"),
			"tableName":   gateway.String("trips"),
			"isTemporary": gateway.Bool(false),
		}},
		Count: 1,
	}, nil)
	srv := newTestServer(t, gw)
	handler := srv.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/v1/catalog/catalogs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"catalogs": ["samples", "main"]}`, rec.Body.String())

	rec = get("/api/v1/catalog/schemas/samples")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schemas": ["nyctaxi"]}`, rec.Body.String())

	rec = get("/api/v1/catalog/tables/samples/nyctaxi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tables": [{"name": "trips", "type": "UNKNOWN", "owner": "", "comment": ""}]}`, rec.Body.String())
	gw.AssertExpectations(t)
}

func TestCatalogDetailEndpoint(t *testing.T) {
	gw := &mockGateway{}
	gw.On("RunQuery", mock.Anything, "DESCRIBE TABLE EXTENDED `samples`.`nyctaxi`.`trips`", gateway.HardRowCeiling).Return(&gateway.ResultSet{
		Columns: []string{"col_name", "data_type", "comment"},
		Rows: []gateway.Row{
			{"col_name": gateway.String("fare_amount"), "data_type": gateway.String("double"), "comment": gateway.Null()},
			{"col_name": gateway.String(""), "data_type": gateway.String(""), "comment": gateway.String("")},
			{"col_name": gateway.String("# Detailed Table Information"), "data_type": gateway.String(""), "comment": gateway.String("")},
			{"col_name": gateway.String("Type"), "data_type": gateway.String("MANAGED"), "comment": gateway.String("")},
			{"col_name": gateway.String("Provider"), "data_type": gateway.String("delta"), "comment": gateway.String("")},
		},
		Count: 5,
	}, nil)
	srv := newTestServer(t, gw)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/detail/samples/nyctaxi/trips", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"name": "trips",
		"type": "MANAGED",
		"format": "DELTA",
		"owner": "",
		"comment": "",
		"columns": [{"name": "fare_amount", "type": "double", "nullable": true, "comment": ""}]
	}`, rec.Body.String())
	gw.AssertExpectations(t)
}

func TestCatalogEndpointFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("RunQuery", mock.Anything, "SHOW CATALOGS", gateway.HardRowCeiling).
		Return(nil, &gateway.Error{Kind: gateway.KindConnectionFailed, Message: "Could not connect to warehouse.", Err: errors.New("dial tcp: timeout")})
	srv := newTestServer(t, gw)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/catalogs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Connected").Return(true)
	srv := newTestServer(t, gw)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "NOT_SERVING", body["warehouse"])

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunServesHTTPAndGRPCHealth(t *testing.T) {
	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv, err := New(Config{
		HTTPListener:    httpListener,
		GRPCListener:    grpcListener,
		Gateway:         newSQLiteGateway(t),
		ShutdownTimeout: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	conn, err := grpc.NewClient(grpcListener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post("http://"+httpListener.Addr().String()+"/api/v1/sql/run", "application/json", strings.NewReader(`{"query": "SELECT 2 AS two"}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"columns": ["two"], "rows": [{"two": 2}], "count": 1}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
