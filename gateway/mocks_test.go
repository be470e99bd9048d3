package gateway

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testHost = "dbc-1234.cloud.databricks.com"

type mockControlPlane struct {
	mock.Mock
}

func (m *mockControlPlane) Host() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockControlPlane) ListWarehouses(ctx context.Context) ([]EndpointDescriptor, error) {
	args := m.Called(ctx)
	endpoints, _ := args.Get(0).([]EndpointDescriptor)
	return endpoints, args.Error(1)
}

func newMockControlPlane(endpoints []EndpointDescriptor, err error) *mockControlPlane {
	m := &mockControlPlane{}
	m.On("Host").Return(testHost).Maybe()
	m.On("ListWarehouses", mock.Anything).Return(endpoints, err)
	return m
}

type mockSessionOpener struct {
	mock.Mock
}

func (m *mockSessionOpener) Open(ctx context.Context, target ResolvedTarget) (Session, error) {
	args := m.Called(ctx, target)
	session, _ := args.Get(0).(Session)
	return session, args.Error(1)
}

type fakeSession struct {
	pingErr error
	pings   atomic.Int32
	closes  atomic.Int32
}

func (s *fakeSession) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("fake session cannot run queries")
}

func (s *fakeSession) PingContext(context.Context) error {
	s.pings.Add(1)
	return s.pingErr
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	return nil
}

// openSQLiteSession returns an in-memory SQLite session standing in for a warehouse.
func openSQLiteSession(t *testing.T) Session {
	session, err := (&sqliteSessionOpener{dsn: ":memory:"}).Open(context.Background(), ResolvedTarget{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
	})
	return session
}

type staticSessionProvider struct {
	session Session
	err     error
	calls   atomic.Int32
}

func (p *staticSessionProvider) Connection(context.Context) (Session, error) {
	p.calls.Add(1)
	return p.session, p.err
}
