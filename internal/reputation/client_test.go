package reputation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func oracleResponse(confidence float64, whitelisted bool, reports int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"data": map[string]interface{}{
			"abuseConfidenceScore": confidence,
			"isWhitelisted":        whitelisted,
			"totalReports":         reports,
		}}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestClientCheckMapsConfidence(t *testing.T) {
	var gotPath, gotKey, gotIP, gotMaxAge string
	srv := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Key")
		gotIP = r.URL.Query().Get("ipAddress")
		gotMaxAge = r.URL.Query().Get("maxAgeInDays")
		oracleResponse(75, false, 2)(w, r)
	})

	client := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})
	score, err := client.Check(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.InDelta(t, 7.5, score, 1e-9)

	assert.Equal(t, "/check", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "203.0.113.7", gotIP)
	assert.Equal(t, "90", gotMaxAge)
}

func TestClientCheckWhitelisted(t *testing.T) {
	srv := oracleServer(t, oracleResponse(100, true, 50))
	client := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})

	score, err := client.Check(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestClientCheckReportVolumeBonus(t *testing.T) {
	for _, tt := range []struct {
		name       string
		confidence float64
		reports    int
		want       float64
	}{
		{"bonus applies over five reports", 40, 6, 5},
		{"no bonus at five reports", 40, 5, 4},
		{"bonus capped at ten", 100, 100, 10},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := oracleServer(t, oracleResponse(tt.confidence, false, tt.reports))
			client := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})

			score, err := client.Check(context.Background(), "203.0.113.7")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestClientCheckServerError(t *testing.T) {
	srv := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	client := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})

	_, err := client.Check(context.Background(), "203.0.113.7")
	assert.Error(t, err)
}

func TestClientCheckMalformedBody(t *testing.T) {
	srv := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	client := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})

	_, err := client.Check(context.Background(), "203.0.113.7")
	assert.Error(t, err)
}

func TestClientCheckSkipsWithoutKey(t *testing.T) {
	called := false
	srv := oracleServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	client := NewClient(ClientOptions{BaseURL: srv.URL})

	score, err := client.Check(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.False(t, called)

	// Empty address is also a no-op.
	withKey := NewClient(ClientOptions{BaseURL: srv.URL, APIKey: "secret"})
	score, err = withKey.Check(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.False(t, called)
}
