// FilePath: internal/server/server_test.go
package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

type fakeDB struct {
	pingErr error
	lastCtx context.Context
}

func (f *fakeDB) Close() error    { return nil }
func (f *fakeDB) GetDB() *sqlx.DB { return nil }
func (f *fakeDB) Ping(ctx context.Context) error {
	f.lastCtx = ctx
	return f.pingErr
}

func TestHandleHealth_DBReachable(t *testing.T) {
	s := New(nil)
	db := &fakeDB{}

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(db)(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status"`)
	assert.NotNil(t, db.lastCtx, "ping must carry the request context")
}

func TestHandleHealth_DBDown(t *testing.T) {
	s := New(nil)
	db := &fakeDB{pingErr: errors.New("connection refused")}

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(db)(rec, req)

	assert.Equal(t, 503, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
