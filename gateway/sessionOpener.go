package gateway

import (
	"context"
	"database/sql"
	"fmt"

	dbsql "github.com/databricks/databricks-sql-go"
	log "github.com/sirupsen/logrus"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const defaultWarehousePort = 443

// Session is a live connection to a warehouse. *sql.DB satisfies it.
type Session interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// SessionOpener opens a session bound to a resolved target.
type SessionOpener interface {
	Open(ctx context.Context, target ResolvedTarget) (Session, error)
}

type databricksSessionOpener struct {
	credentials CredentialProvider
}

func (o *databricksSessionOpener) Open(_ context.Context, target ResolvedTarget) (Session, error) {
	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(target.Host),
		dbsql.WithPort(defaultWarehousePort),
		dbsql.WithHTTPPath(target.HTTPPath),
		dbsql.WithAuthenticator(o.credentials),
	)
	if err != nil {
		log.Errorf("Invalid warehouse connector for %s%s, Error: %v", target.Host, target.HTTPPath, err)
		return nil, fmt.Errorf("invalid warehouse connector: %w", err)
	}
	return singleConnection(sql.OpenDB(connector)), nil
}

type sqliteSessionOpener struct {
	dsn string
}

func (o *sqliteSessionOpener) Open(_ context.Context, _ ResolvedTarget) (Session, error) {
	db, err := sql.Open(DriverSQLite, o.dsn)
	if err != nil {
		return nil, err
	}
	return singleConnection(db), nil
}

// singleConnection restricts the pool to one physical connection.
func singleConnection(db *sql.DB) *sql.DB {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db
}
