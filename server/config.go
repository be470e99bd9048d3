package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/startreedata/warehouse-gateway/gateway"
)

const (
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// QueryGateway is the part of *gateway.Gateway the HTTP surface uses.
type QueryGateway interface {
	gateway.QueryRunner
	RunAdHocQuery(ctx context.Context, text string, maxRows int) (*gateway.ResultSet, error)
	Target(ctx context.Context) (gateway.ResolvedTarget, error)
	Connected() bool
	Catalog() gateway.CatalogBrowser
}

// Config holds the listeners and timeouts of a Server.
type Config struct {
	HTTPListener net.Listener // HTTP API listener
	GRPCListener net.Listener // gRPC health listener (optional)
	Gateway      QueryGateway

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Validate checks the required fields and fills in default timeouts.
func (cfg *Config) Validate() error {
	if cfg.HTTPListener == nil {
		return errors.New("http listener is required")
	}
	if cfg.Gateway == nil {
		return errors.New("gateway is required")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
