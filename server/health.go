package server

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/startreedata/warehouse-gateway/gateway"
)

// HealthServiceName is the service reported through the gRPC health protocol.
const HealthServiceName = "warehouse.gateway.v1.QueryGateway"

// healthReporter tracks whether the warehouse is reachable and publishes it over gRPC health.
type healthReporter struct {
	server *health.Server
}

func newHealthReporter() *healthReporter {
	server := health.NewServer()
	server.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &healthReporter{server: server}
}

// checkTarget resolves the warehouse target and updates the status accordingly.
func (h *healthReporter) checkTarget(ctx context.Context, gw QueryGateway) {
	_, err := gw.Target(ctx)
	if err != nil {
		log.Errorf("Warehouse health check failed, Error: %v", err)
	}
	h.observe(err)
}

// observe updates the status from the outcome of a gateway call.
// Only resolution and connection failures mark the service as not serving.
func (h *healthReporter) observe(err error) {
	switch gateway.KindOf(err) {
	case gateway.KindNoEndpointAvailable, gateway.KindConnectionFailed:
		h.server.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	case 0:
		if err == nil {
			h.server.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
		}
	}
}

func (h *healthReporter) status() healthpb.HealthCheckResponse_ServingStatus {
	resp, err := h.server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.Status
}
