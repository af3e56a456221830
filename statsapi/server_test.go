package statsapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbusgo/stats"
)

func TestHealthzEndpoint(t *testing.T) {
	server := NewServer(stats.New(), Config{Port: 8090})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestAllStatsReturnsEveryDevice(t *testing.T) {
	reg := stats.New()
	reg.RecordFrame(stats.WiredKey("A"), stats.OutcomeOK)
	reg.RecordFrame(stats.WirelessKey(0x1234, 42), stats.OutcomeCRCError)

	server := NewServer(reg, Config{Port: 8090})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []deviceCounters
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}

func TestDeviceStatsFindsByKey(t *testing.T) {
	reg := stats.New()
	key := stats.WiredKey("FFFFFFFFFFFFFFFF")
	reg.RecordFrame(key, stats.OutcomeOK)

	server := NewServer(reg, Config{Port: 8090})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/stats/"+key.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp deviceCounters
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, uint64(1), resp.FramesOK)
}

func TestDeviceStatsUnknownDeviceIs404(t *testing.T) {
	server := NewServer(stats.New(), Config{Port: 8090})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/stats/wired:nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
