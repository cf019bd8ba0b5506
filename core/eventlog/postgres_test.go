//go:build !no_containers

package eventlog

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/vtn/core/factory"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "vtn",
			"POSTGRES_PASSWORD": "vtn",
			"POSTGRES_DB":       "vtn",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start postgres: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "5432")
	return fmt.Sprintf("postgres://vtn:vtn@%s:%s/vtn?sslmode=disable", host, port.Port())
}

func TestPostgresStore_PersistQuery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	url := startPostgres(ctx, t)

	store, err := NewLogStore(factory.ModuleConfig{Type: "postgres", Conf: map[string]any{"url": url}})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	now := time.Now().UTC().Truncate(time.Microsecond)
	recs := []LogRecord{
		{Timestamp: now.Add(time.Second), Kind: KindTransition, VenID: "v1", EventID: "e1", From: "far", To: "active"},
		{Timestamp: now, Kind: KindDecision, VenID: "v1", EventID: "e1", OptType: "optIn", Source: "pending"},
		{Timestamp: now, Kind: KindRequest, VenID: "v2", Events: 3},
	}
	for _, r := range recs {
		require.NoError(t, store.Append(ctx, r))
	}

	out, err := store.Query(ctx, LogQuery{VenID: "v1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, KindDecision, out[0].Kind)
	assert.Equal(t, "active", out[1].To)

	out, err = store.Query(ctx, LogQuery{EventID: "e1", Kind: KindTransition, Start: now.Add(time.Millisecond), End: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	require.NoError(t, store.(*PostgresStore).Ping(ctx))
}
