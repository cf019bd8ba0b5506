package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/vtn/core/eventlog"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/service"
)

// Authenticator decorates outgoing requests with credentials.
type Authenticator interface {
	SetAuthHeader(r *http.Request) error
}

// Client calls the admin API of a running VTN. Auth takes precedence over a
// static Token.
type Client struct {
	BaseURL string
	Token   string
	Auth    Authenticator
	HTTP    *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.BaseURL, "/")+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.Auth != nil:
		if err := c.Auth.SetAuthHeader(req); err != nil {
			return 0, err
		}
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Add offers ev to venID.
func (c *Client) Add(ctx context.Context, venID string, ev model.Event) (AddResponse, error) {
	var out AddResponse
	_, err := c.do(ctx, http.MethodPost, "/api/events", AddRequest{VenID: venID, Event: ev}, &out)
	return out, err
}

// Cancel cancels a tracked event.
func (c *Client) Cancel(ctx context.Context, eventID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(eventID), nil, nil)
	return err
}

// List returns the tracked events, optionally restricted to one VEN.
func (c *Client) List(ctx context.Context, venID string) ([]service.EventView, error) {
	path := "/api/events"
	if venID != "" {
		path += "?ven_id=" + url.QueryEscape(venID)
	}
	var out []service.EventView
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Logs queries the audit trail. Zero fields of q are not sent.
func (c *Client) Logs(ctx context.Context, q eventlog.LogQuery) ([]eventlog.LogRecord, error) {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.Format(time.RFC3339))
	}
	for k, s := range map[string]string{"ven_id": q.VenID, "event_id": q.EventID, "kind": q.Kind} {
		if s != "" {
			v.Set(k, s)
		}
	}
	path := "/api/events/logs"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []eventlog.LogRecord
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
