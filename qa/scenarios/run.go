package scenarios

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/queue"
	"github.com/kilianp07/vtn/core/scheduler"
	"github.com/kilianp07/vtn/core/service"
	"github.com/kilianp07/vtn/infra/logger"
)

var clockStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// RunScenario offers the scenario events, plays its steps and checks the
// expectations. Requests return the events still pending for the VEN.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	service.ResetMetrics(prometheus.NewRegistry())

	mt := scheduler.NewManualTimer(clockStart)
	q := queue.NewMemoryQueue(64)
	var svc *service.EventService

	var mu sync.Mutex
	decisions := 0
	hooks := service.Hooks{
		RequestEvent: func(ctx context.Context, venID string) (service.Selection, error) {
			evs, err := svc.PendingFor(ctx, venID)
			if err != nil {
				return service.None(), err
			}
			return service.Many(evs), nil
		},
		Decision: func(context.Context, string, string, model.OptType) error {
			mu.Lock()
			decisions++
			mu.Unlock()
			return nil
		},
	}

	svc, err := service.NewEventService(service.Config{VTNID: "vtn-qa"}, q,
		service.WithTimer(mt),
		service.WithHooks(hooks),
		service.WithRetention(sc.Policy),
		service.WithLogger(logger.NopLogger{}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	for _, e := range sc.Events {
		_, err := svc.AddEvent(ctx, e.Ven, e.ToModel(clockStart), nil)
		require.NoError(t, err, "offer %s", e.ID)
	}

	for i, st := range sc.Steps {
		switch {
		case st.Advance > 0:
			mt.Advance(st.Advance)
			// the snapshot is queued behind the fired transitions
			_, err := svc.Snapshot(ctx)
			require.NoError(t, err)
		case st.Request != "":
			out, err := svc.RequestEvent(ctx, st.Request)
			require.NoError(t, err, "step %d", i)
			if st.Events != nil {
				assert.Len(t, out.Events, *st.Events, "step %d", i)
			}
		case st.Respond != nil:
			r := model.EventResponse{EventID: st.Respond.Event, OptType: model.OptType(st.Respond.Opt)}
			_, err := svc.CreatedEvent(ctx, st.Respond.Ven, []model.EventResponse{r})
			require.NoError(t, err, "step %d", i)
		case st.Cancel != "":
			require.NoError(t, svc.CancelEvent(ctx, st.Cancel), "step %d", i)
		}
	}

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Pending, sc.Expected.Pending, "pending")
	assert.Len(t, snap.Running, sc.Expected.Running, "running")

	mu.Lock()
	assert.Equal(t, sc.Expected.Decisions, decisions, "decisions")
	mu.Unlock()

	vens := lo.Uniq(append(lo.Keys(sc.Expected.Pushes), lo.Map(sc.Events, func(e EventDef, _ int) string { return e.Ven })...))
	sort.Strings(vens)
	for _, ven := range vens {
		got := lo.Map(q.Drain(ven), func(e model.Event, _ int) string { return e.Status().String() })
		assert.Equal(t, sc.Expected.Pushes[ven], got, "pushes to %s", ven)
	}
}
