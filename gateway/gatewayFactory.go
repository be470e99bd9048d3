package gateway

import (
	"fmt"
)

// NewFromEnv creates a Gateway configured from the process environment.
func NewFromEnv() (*Gateway, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(config)
}

// NewFromWarehouseID creates a Gateway pinned to one warehouse, with workspace credentials from the environment.
func NewFromWarehouseID(warehouseID string) (*Gateway, error) {
	return NewWithConfig(&Config{WarehouseID: warehouseID})
}

// NewWithConfig creates a Gateway. Nothing is resolved or opened until the first query.
func NewWithConfig(config *Config) (*Gateway, error) {
	if config == nil {
		return nil, fmt.Errorf("gateway config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Driver {
	case DriverSQLite:
		return NewWithComponents(localControlPlane{}, &sqliteSessionOpener{dsn: config.SQLiteDSN}, config.WarehouseID), nil
	default:
		controlPlane, err := newWorkspaceControlPlane(config)
		if err != nil {
			return nil, err
		}
		opener := &databricksSessionOpener{credentials: controlPlane.Credentials()}
		gw := NewWithComponents(controlPlane, opener, config.WarehouseID)
		gw.catalog = newWorkspaceCatalog(controlPlane.client)
		return gw, nil
	}
}

// NewWithComponents wires a Gateway from a control plane and a session opener.
// Its catalog browser runs SHOW and DESCRIBE statements through the gateway itself.
func NewWithComponents(controlPlane ControlPlane, opener SessionOpener, warehouseID string) *Gateway {
	resolver := NewEndpointResolver(controlPlane, warehouseID)
	connections := NewConnectionManager(resolver, opener)
	gw := &Gateway{
		resolver:    resolver,
		connections: connections,
		executor:    NewExecutor(connections),
	}
	gw.catalog = NewCatalog(gw)
	return gw
}
