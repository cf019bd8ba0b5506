package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/eventlog"
)

func TestClientRoundTrip(t *testing.T) {
	f := newFixture(t, "secret", 4)
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/", Token: "secret"}
	ctx := context.Background()

	added, err := c.Add(ctx, "VEN123", demoEvent("EVT 1"))
	require.NoError(t, err)
	assert.Equal(t, "EVT 1", added.EventID)

	views, err := c.List(ctx, "VEN123")
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NoError(t, c.Cancel(ctx, "EVT 1"))
	err = c.Cancel(ctx, "EVT 1")
	assert.ErrorContains(t, err, "409")

	bad := &Client{BaseURL: srv.URL}
	_, err = bad.List(ctx, "")
	assert.ErrorContains(t, err, "401")
}

type staticAuth struct {
	token string
	err   error
}

func (a staticAuth) SetAuthHeader(r *http.Request) error {
	if a.err != nil {
		return a.err
	}
	r.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

func TestClientAuthenticator(t *testing.T) {
	f := newFixture(t, "secret", 4)
	srv := httptest.NewServer(f.h)
	defer srv.Close()
	ctx := context.Background()

	c := &Client{BaseURL: srv.URL, Token: "wrong", Auth: staticAuth{token: "secret"}}
	_, err := c.List(ctx, "")
	require.NoError(t, err)

	c.Auth = staticAuth{err: errors.New("no token")}
	_, err = c.List(ctx, "")
	assert.ErrorContains(t, err, "no token")
}

func TestClientLogs(t *testing.T) {
	f := newFixture(t, "", 4)
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	recs, err := c.Logs(context.Background(), eventlog.LogQuery{VenID: "VEN9"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "EVT2", recs[0].EventID)

	recs, err = c.Logs(context.Background(), eventlog.LogQuery{Start: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
