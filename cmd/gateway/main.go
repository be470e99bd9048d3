package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/startreedata/warehouse-gateway/gateway"
	"github.com/startreedata/warehouse-gateway/server"
)

const (
	defaultHTTPListenAddr    = "0.0.0.0:3011"
	defaultMetricsAddr       = "0.0.0.0:8080"
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	logFormatFlag := flag.String("log-format", "text", "log format: text or json")
	httpListenAddrFlag := flag.String("http-listen-addr", defaultHTTPListenAddr, "HTTP server listen address")
	grpcHealthAddrFlag := flag.String("grpc-health-addr", "", "gRPC health listen address (empty disables it)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (empty disables it)")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "Server shutdown timeout")
	envFileFlag := flag.String("env-file", ".env", "dotenv file read before the environment")
	warehouseIDFlag := flag.String("warehouse-id", "", "SQL warehouse to query, skipping discovery (or set DATABRICKS_WAREHOUSE_ID)")
	driverFlag := flag.String("driver", "", "session backend: databricks or sqlite (or set GATEWAY_DRIVER)")
	sqliteDSNFlag := flag.String("sqlite-dsn", "", "SQLite data source for the sqlite driver (or set GATEWAY_SQLITE_DSN)")
	flag.Parse()

	configureLogging(*verboseFlag, *logFormatFlag)

	config, err := gateway.LoadConfigFromEnv(*envFileFlag)
	if err != nil {
		return fmt.Errorf("failed to load gateway config: %w", err)
	}
	if *warehouseIDFlag != "" {
		config.WarehouseID = *warehouseIDFlag
	}
	if *driverFlag != "" {
		config.Driver = *driverFlag
	}
	if *sqliteDSNFlag != "" {
		config.SQLiteDSN = *sqliteDSNFlag
	}

	gw, err := gateway.NewWithConfig(config)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Errorf("Failed to close warehouse session, Error: %v", err)
		}
	}()
	log.WithFields(log.Fields{
		"driver":      config.Driver,
		"warehouseId": config.WarehouseID,
	}).Info("Gateway configured")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-sigCh
		log.Infof("Received signal %s", sig)
		cancel()
	}()

	metricsErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				metricsErrCh <- fmt.Errorf("failed to start metrics listener: %w", err)
				return
			}
			log.Infof("Prometheus metrics listening on %s", listener.Addr())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsSrv := &http.Server{Handler: mux, ReadHeaderTimeout: *readHeaderTimeoutFlag}
			if err := metricsSrv.Serve(listener); err != nil {
				metricsErrCh <- fmt.Errorf("failed to serve metrics: %w", err)
			}
		}()
	}

	httpListener, err := net.Listen("tcp", *httpListenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener: %w", err)
	}
	defer httpListener.Close()

	var grpcListener net.Listener
	if *grpcHealthAddrFlag != "" {
		grpcListener, err = net.Listen("tcp", *grpcHealthAddrFlag)
		if err != nil {
			return fmt.Errorf("failed to create gRPC health listener: %w", err)
		}
		defer grpcListener.Close()
	}

	srv, err := server.New(server.Config{
		HTTPListener:      httpListener,
		GRPCListener:      grpcListener,
		Gateway:           gw,
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
		ShutdownTimeout:   *shutdownTimeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case err := <-metricsErrCh:
		log.Errorf("Metrics server error causing shutdown: %v", err)
		cancel()
		<-serverErrCh
		return err
	}
}

func configureLogging(verbose bool, format string) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
