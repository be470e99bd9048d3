package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/databricks/databricks-sdk-go"
	dbsqlapi "github.com/databricks/databricks-sdk-go/service/sql"
	log "github.com/sirupsen/logrus"
)

// CredentialProvider signs outgoing warehouse requests.
type CredentialProvider interface {
	Authenticate(r *http.Request) error
}

// workspaceControlPlane lists warehouses through the Databricks workspace API.
// Credentials come from the SDK's unified auth chain (env, profile, OAuth, app identity).
type workspaceControlPlane struct {
	client *databricks.WorkspaceClient
}

func newWorkspaceControlPlane(config *Config) (*workspaceControlPlane, error) {
	client, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:    config.Host,
		Token:   config.Token,
		Profile: config.Profile,
	})
	if err != nil {
		log.Errorf("Unable to create workspace client, Error: %v", err)
		return nil, fmt.Errorf("unable to create workspace client: %w", err)
	}
	return &workspaceControlPlane{client: client}, nil
}

func (p *workspaceControlPlane) Host() string {
	return hostname(p.client.Config.Host)
}

// Credentials returns the workspace configuration, which authenticates requests itself.
func (p *workspaceControlPlane) Credentials() CredentialProvider {
	return p.client.Config
}

func (p *workspaceControlPlane) ListWarehouses(ctx context.Context) ([]EndpointDescriptor, error) {
	warehouses, err := p.client.Warehouses.ListAll(ctx, dbsqlapi.ListWarehousesRequest{})
	if err != nil {
		return nil, err
	}
	endpoints := make([]EndpointDescriptor, 0, len(warehouses))
	for _, warehouse := range warehouses {
		state := EndpointState(warehouse.State)
		if state == "" {
			state = StateUnknown
		}
		endpoints = append(endpoints, EndpointDescriptor{
			ID:         warehouse.Id,
			Name:       warehouse.Name,
			Serverless: warehouse.EnableServerlessCompute,
			State:      state,
		})
	}
	return endpoints, nil
}

func hostname(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// localControlPlane exposes a single always-running endpoint for the sqlite driver.
type localControlPlane struct{}

func (localControlPlane) Host() string {
	return "localhost"
}

func (localControlPlane) ListWarehouses(context.Context) ([]EndpointDescriptor, error) {
	return []EndpointDescriptor{{
		ID:    "local",
		Name:  DriverSQLite,
		State: StateRunning,
	}}, nil
}
