package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		withRedis  bool
		redisErr   error
		wantStatus int
		wantChecks map[string]any
	}{
		{
			name:       "database only",
			wantStatus: http.StatusOK,
			wantChecks: map[string]any{"database": "ok"},
		},
		{
			name:       "database down",
			dbErr:      errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"database": "down"},
		},
		{
			name:       "database and redis up",
			withRedis:  true,
			wantStatus: http.StatusOK,
			wantChecks: map[string]any{"database": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			withRedis:  true,
			redisErr:   errors.New("i/o timeout"),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]any{"database": "ok", "redis": "down"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()
			ping := dbMock.ExpectPing()
			if tc.dbErr != nil {
				ping.WillReturnError(tc.dbErr)
			}

			h := NewHealthHandler(db, nil)
			if tc.withRedis {
				rdb, redisMock := redismock.NewClientMock()
				if tc.redisErr != nil {
					redisMock.ExpectPing().SetErr(tc.redisErr)
				} else {
					redisMock.ExpectPing().SetVal("PONG")
				}
				h = NewHealthHandler(db, rdb)
			}

			rr := httptest.NewRecorder()
			h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tc.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.wantChecks, body["checks"])
			assert.NoError(t, dbMock.ExpectationsWereMet())
		})
	}
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rr := httptest.NewRecorder()

	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
