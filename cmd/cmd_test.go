package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apievents "github.com/kilianp07/vtn/api/events"
	"github.com/kilianp07/vtn/auth"
	"github.com/kilianp07/vtn/core/eventlog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service:\n  vtn_id: VTN-1\nhooks:\n  request_event:\n    type: pending\n"), 0o644))

	out, err := execute(t, "config", "check", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "vtn_id:       VTN-1")
	assert.Contains(t, out, "memory queue")
	assert.Contains(t, out, "request_event=pending")
	assert.Contains(t, out, "configuration OK")

	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  decision:\n    type: magic\n"), 0o644))
	_, err = execute(t, "config", "check", "-c", path)
	assert.Error(t, err)
}

func TestEventAdd(t *testing.T) {
	var got apievents.AddRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(apievents.AddResponse{EventID: "EVT1"})
	}))
	defer srv.Close()

	before := time.Now()
	out, err := execute(t, "event", "add", "--api", srv.URL, "--token", "tok", "--ven", "VEN123",
		"--id", "EVT1", "--start", "10s", "--duration", "5s", "--ramp-up", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "offered EVT1 to VEN123")

	assert.Equal(t, "VEN123", got.VenID)
	assert.Equal(t, "EVT1", got.Event.ID())
	assert.Equal(t, 5*time.Second, got.Event.ActivePeriod.Duration)
	require.NotNil(t, got.Event.ActivePeriod.RampUpPeriod)
	assert.Equal(t, 2*time.Second, *got.Event.ActivePeriod.RampUpPeriod)
	assert.WithinDuration(t, before.Add(10*time.Second), got.Event.ActivePeriod.DTStart, 2*time.Second)
	assert.Equal(t, "VEN123", got.Event.Targets[0].VenID)
}

func TestEventCancelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, "cancel EVT9: event not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := execute(t, "event", "cancel", "EVT9", "--api", srv.URL, "--token", "")
	assert.ErrorContains(t, err, "404")
}

func TestEventLogsCSVWithOAuth(t *testing.T) {
	t.Cleanup(func() { apiOAuth = auth.Conf{} })
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"oauth-tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokens.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/logs", r.URL.Path)
		assert.Equal(t, "VEN1", r.URL.Query().Get("ven_id"))
		assert.Equal(t, "transition", r.URL.Query().Get("kind"))
		assert.Equal(t, "Bearer oauth-tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]eventlog.LogRecord{{
			Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), Kind: "transition", VenID: "VEN1", EventID: "E1", To: "active",
		}})
	}))
	defer api.Close()

	out, err := execute(t, "event", "logs", "--api", api.URL, "--token", "",
		"--oauth-token-url", tokens.URL, "--oauth-client-id", "cli",
		"--ven", "VEN1", "--kind", "transition", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,kind,ven_id"))
	assert.Contains(t, lines[1], "VEN1,E1")
}

func TestTokenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  jwt_secret: s3cret\n  jwt_issuer: vtn\n"), 0o644))

	out, err := execute(t, "token", "-c", path, "--subject", "ops", "--ttl", "1m")
	require.NoError(t, err)
	claims, err := apievents.ValidateToken(apievents.AuthConfig{JWTSecret: "s3cret", JWTIssuer: "vtn"}, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	require.NoError(t, os.WriteFile(path, []byte("service:\n  vtn_id: x\n"), 0o644))
	_, err = execute(t, "token", "-c", path)
	assert.ErrorContains(t, err, "jwt secret required")
}
