package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Gateway is the entry point for running SQL against the shared warehouse.
// It is safe for concurrent use; create one per process.
type Gateway struct {
	resolver    *EndpointResolver
	connections *ConnectionManager
	executor    *Executor
	catalog     CatalogBrowser
}

// RunQuery executes trusted, caller-built SQL without the statement guard.
// At most limit rows are returned (DefaultQueryLimit when limit <= 0, never above HardRowCeiling).
func (g *Gateway) RunQuery(ctx context.Context, text string, limit int) (*ResultSet, error) {
	statement := Statement{Text: text, MaxRows: EffectiveRowCap(limit, DefaultQueryLimit)}
	return g.run(ctx, queryKindFixed, statement)
}

// RunAdHocQuery executes user-submitted SQL after Sanitize. Rejected statements never reach the warehouse.
func (g *Gateway) RunAdHocQuery(ctx context.Context, text string, maxRows int) (*ResultSet, error) {
	safe, err := Sanitize(text, maxRows)
	if err != nil {
		log.Debugf("Rejected ad-hoc statement: %v", err)
		queriesTotal.WithLabelValues(queryKindAdHoc, outcomeLabel(err)).Inc()
		return nil, err
	}
	return g.run(ctx, queryKindAdHoc, safe.Statement)
}

func (g *Gateway) run(ctx context.Context, kind string, statement Statement) (*ResultSet, error) {
	logger := log.WithFields(log.Fields{
		"queryId": uuid.NewString(),
		"kind":    kind,
	})
	logger.Debugf("Executing SQL with row cap %d: %s", statement.MaxRows, statement.Text)

	start := time.Now()
	result, err := g.executor.Execute(ctx, statement)
	elapsed := time.Since(start)
	queriesTotal.WithLabelValues(kind, outcomeLabel(err)).Inc()
	if err != nil {
		logger.Errorf("Query failed after %v: %v", elapsed, err)
		return nil, err
	}
	queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	rowsReturned.WithLabelValues(kind).Observe(float64(result.Count))
	logger.Debugf("Query returned %d rows in %v", result.Count, elapsed)
	return result, nil
}

// Target resolves (if needed) and returns the warehouse this gateway queries.
func (g *Gateway) Target(ctx context.Context) (ResolvedTarget, error) {
	return g.resolver.Resolve(ctx)
}

// Connected reports whether the shared session has been opened.
func (g *Gateway) Connected() bool {
	_, ok := g.connections.Target()
	return ok
}

// Catalog returns the catalog browser for this gateway's driver.
func (g *Gateway) Catalog() CatalogBrowser {
	return g.catalog
}

// Close releases the shared session.
func (g *Gateway) Close() error {
	return g.connections.Close()
}
