// Package server exposes a Gateway over HTTP, with gRPC health reporting.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/startreedata/warehouse-gateway/codec"
	"github.com/startreedata/warehouse-gateway/gateway"
)

const maxRequestBytes = 1 << 20

// QueryRequest is the body of an ad-hoc query request.
type QueryRequest struct {
	Query   string `json:"query"`
	MaxRows int    `json:"max_rows"`
}

// Server serves the HTTP API, and gRPC health when a listener is configured.
type Server struct {
	cfg     Config
	gateway QueryGateway
	catalog gateway.CatalogBrowser
	health  *healthReporter
	httpSrv *http.Server
	grpcSrv *grpc.Server
}

// New validates cfg and builds a Server. Nothing listens until Run.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		gateway: cfg.Gateway,
		catalog: cfg.Gateway.Catalog(),
		health:  newHealthReporter(),
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	if cfg.GRPCListener != nil {
		s.grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpcSrv, s.health.server)
	}
	return s, nil
}

// Handler returns the HTTP routes of the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sql/run", s.runHandler)
	mux.HandleFunc("POST /api/v1/sql/export", s.exportHandler)
	mux.HandleFunc("GET /api/v1/warehouse", s.warehouseHandler)
	mux.HandleFunc("GET /api/v1/catalog/catalogs", s.catalogsHandler)
	mux.HandleFunc("GET /api/v1/catalog/schemas/{catalog}", s.schemasHandler)
	mux.HandleFunc("GET /api/v1/catalog/tables/{catalog}/{schema}", s.tablesHandler)
	mux.HandleFunc("GET /api/v1/catalog/detail/{catalog}/{schema}/{table}", s.detailHandler)
	mux.HandleFunc("GET /healthz", s.healthzHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 2)
	go func() {
		if err := s.httpSrv.Serve(s.cfg.HTTPListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()
	log.Infof("HTTP API listening on %s", s.cfg.HTTPListener.Addr())

	if s.grpcSrv != nil {
		go func() {
			if err := s.grpcSrv.Serve(s.cfg.GRPCListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErrCh <- fmt.Errorf("failed to serve gRPC health: %w", err)
			}
		}()
		log.Infof("gRPC health listening on %s", s.cfg.GRPCListener.Addr())
	}
	go s.health.checkTarget(ctx, s.gateway)

	select {
	case <-ctx.Done():
		log.Infof("Stopping server: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if s.grpcSrv != nil {
			s.health.server.Shutdown()
			s.grpcSrv.GracefulStop()
		}
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-serveErrCh:
		log.Errorf("Server error causing shutdown: %v", err)
		return err
	}
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (QueryRequest, error) {
	var req QueryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		return req, &gateway.Error{Kind: gateway.KindRejectedStatement, Message: "Invalid request body", Err: err}
	}
	return req, nil
}

func (s *Server) runAdHoc(w http.ResponseWriter, r *http.Request) (*gateway.ResultSet, error) {
	req, err := decodeQueryRequest(w, r)
	if err != nil {
		return nil, err
	}
	result, err := s.gateway.RunAdHocQuery(r.Context(), req.Query, req.MaxRows)
	s.health.observe(err)
	return result, err
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.runAdHoc(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	compression, err := codec.NormalizeCompression(r.URL.Query().Get("compression"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}
	result, err := s.runAdHoc(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := codec.EncodeArrow(result)
	if err == nil {
		payload, err = codec.Compress(payload, compression)
	}
	if err != nil {
		log.Errorf("Unable to encode export, Error: %v", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	w.Header().Set("Content-Type", codec.ArrowContentType)
	w.Header().Set("X-Arrow-Compression", compression)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		log.Error("Unable to write export body. ", err)
	}
}

func (s *Server) warehouseHandler(w http.ResponseWriter, r *http.Request) {
	target, err := s.gateway.Target(r.Context())
	s.health.observe(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, target)
}

func (s *Server) catalogsHandler(w http.ResponseWriter, r *http.Request) {
	catalogs, err := s.catalog.ListCatalogs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"catalogs": catalogs})
}

func (s *Server) schemasHandler(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.catalog.ListSchemas(r.Context(), r.PathValue("catalog"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"schemas": schemas})
}

func (s *Server) tablesHandler(w http.ResponseWriter, r *http.Request) {
	tables, err := s.catalog.ListTables(r.Context(), r.PathValue("catalog"), r.PathValue("schema"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]gateway.TableInfo{"tables": tables})
}

func (s *Server) detailHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := s.catalog.TableDetail(r.Context(), r.PathValue("catalog"), r.PathValue("schema"), r.PathValue("table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"connected": s.gateway.Connected(),
		"warehouse": s.health.status().String(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}
