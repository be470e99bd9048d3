package gateway

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type sessionProvider interface {
	Connection(ctx context.Context) (Session, error)
}

// Executor runs statements over the shared session, one at a time.
type Executor struct {
	connections sessionProvider
	// Serializes statements so result reads never interleave on the shared session.
	mu sync.Mutex
}

// NewExecutor creates an executor on top of a connection manager.
func NewExecutor(connections *ConnectionManager) *Executor {
	return &Executor{connections: connections}
}

// Execute runs the statement and reads at most its row cap (never more than HardRowCeiling).
// Cancelling ctx cancels the running statement.
func (e *Executor) Execute(ctx context.Context, statement Statement) (*ResultSet, error) {
	session, err := e.connections.Connection(ctx)
	if err != nil {
		return nil, err
	}
	rowCap := EffectiveRowCap(statement.MaxRows, HardRowCeiling)

	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := session.QueryContext(ctx, statement.Text)
	if err != nil {
		log.Errorf("Caught exception to execute SQL query %s, Error: %v", statement.Text, err)
		return nil, newError(KindExecutionFailed, err, "%s", err.Error())
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("Unable to close result rows. ", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, newError(KindExecutionFailed, err, "%s", err.Error())
	}

	var resultRows []Row
	for len(resultRows) < rowCap && rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, newError(KindExecutionFailed, err, "%s", err.Error())
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = ValueOf(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("Caught exception reading results of SQL query %s, Error: %v", statement.Text, err)
		return nil, newError(KindExecutionFailed, err, "%s", err.Error())
	}

	if len(resultRows) == 0 {
		return newEmptyResultSet(), nil
	}
	return &ResultSet{
		Columns: columns,
		Rows:    resultRows,
		Count:   len(resultRows),
	}, nil
}
