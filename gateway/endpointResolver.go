// Package gateway runs SQL against a shared Databricks SQL warehouse: it discovers the
// warehouse, keeps one session to it, guards ad-hoc statements and shapes results.
package gateway

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const warehouseHTTPPathTemplate = "/sql/1.0/warehouses/%s"

// EndpointState is the lifecycle state reported for a warehouse.
type EndpointState string

const (
	StateStarting EndpointState = "STARTING"
	StateRunning  EndpointState = "RUNNING"
	StateStopping EndpointState = "STOPPING"
	StateStopped  EndpointState = "STOPPED"
	StateDeleting EndpointState = "DELETING"
	StateDeleted  EndpointState = "DELETED"
	StateUnknown  EndpointState = "UNKNOWN"
)

// EndpointDescriptor describes a warehouse visible to the credential in use.
type EndpointDescriptor struct {
	ID         string
	Name       string
	Serverless bool
	State      EndpointState
}

// ResolvedTarget is the warehouse chosen for the lifetime of the process.
type ResolvedTarget struct {
	Host        string `json:"host"`
	HTTPPath    string `json:"httpPath"`
	WarehouseID string `json:"warehouseId"`
}

// ControlPlane lists warehouses and names the workspace host they belong to.
type ControlPlane interface {
	Host() string
	ListWarehouses(ctx context.Context) ([]EndpointDescriptor, error)
}

// EndpointResolver picks the warehouse to query. Construct it once and share it:
// the first successful resolution is cached for the life of the process and every
// later call reads the cached target. Concurrent first callers share a single listing call.
// Failures are never cached.
type EndpointResolver struct {
	controlPlane ControlPlane
	warehouseID  string
	target       atomic.Pointer[ResolvedTarget]
	group        singleflight.Group
}

// NewEndpointResolver creates a resolver. A non-empty warehouseID bypasses discovery.
func NewEndpointResolver(controlPlane ControlPlane, warehouseID string) *EndpointResolver {
	return &EndpointResolver{
		controlPlane: controlPlane,
		warehouseID:  warehouseID,
	}
}

// Resolve returns the cached target, resolving it on first use. A caller whose ctx ends while
// waiting gets ctx.Err(); the shared listing keeps running for the other callers.
func (r *EndpointResolver) Resolve(ctx context.Context) (ResolvedTarget, error) {
	if target := r.target.Load(); target != nil {
		return *target, nil
	}
	listCtx := context.WithoutCancel(ctx)
	resultCh := r.group.DoChan("resolve", func() (interface{}, error) {
		if target := r.target.Load(); target != nil {
			return target, nil
		}
		target, err := r.resolve(listCtx)
		if err != nil {
			return nil, err
		}
		r.target.Store(target)
		return target, nil
	})
	select {
	case <-ctx.Done():
		return ResolvedTarget{}, ctx.Err()
	case result := <-resultCh:
		if result.Err != nil {
			return ResolvedTarget{}, result.Err
		}
		return *(result.Val.(*ResolvedTarget)), nil
	}
}

func (r *EndpointResolver) resolve(ctx context.Context) (*ResolvedTarget, error) {
	if r.warehouseID != "" {
		log.Infof("Using configured warehouse %s", r.warehouseID)
		return r.newTarget(r.warehouseID), nil
	}
	endpoints, err := r.controlPlane.ListWarehouses(ctx)
	if err != nil {
		log.Errorf("Unable to list warehouses, Error: %v", err)
		endpointResolutions.WithLabelValues("error").Inc()
		return nil, newError(KindNoEndpointAvailable, err, "No SQL warehouse available: %v", err)
	}
	endpoint, ok := selectEndpoint(endpoints)
	if !ok {
		endpointResolutions.WithLabelValues("empty").Inc()
		return nil, newError(KindNoEndpointAvailable, nil, "No SQL warehouse available. Set DATABRICKS_WAREHOUSE_ID.")
	}
	endpointResolutions.WithLabelValues("discovered").Inc()
	log.Infof("Discovered warehouse %s (%s), serverless: %v, state: %s", endpoint.ID, endpoint.Name, endpoint.Serverless, endpoint.State)
	return r.newTarget(endpoint.ID), nil
}

func (r *EndpointResolver) newTarget(warehouseID string) *ResolvedTarget {
	return &ResolvedTarget{
		Host:        r.controlPlane.Host(),
		HTTPPath:    fmt.Sprintf(warehouseHTTPPathTemplate, warehouseID),
		WarehouseID: warehouseID,
	}
}

// selectEndpoint prefers a serverless warehouse, then a running one, then the first listed.
func selectEndpoint(endpoints []EndpointDescriptor) (EndpointDescriptor, bool) {
	if len(endpoints) == 0 {
		return EndpointDescriptor{}, false
	}
	for _, endpoint := range endpoints {
		if endpoint.Serverless {
			return endpoint, true
		}
	}
	for _, endpoint := range endpoints {
		if endpoint.State == StateRunning {
			return endpoint, true
		}
	}
	return endpoints[0], true
}
