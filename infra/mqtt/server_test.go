package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/scheduler"
	"github.com/kilianp07/vtn/core/service"
)

type handlerMock struct{ mock.Mock }

func (m *handlerMock) RequestEvent(_ context.Context, venID string) (service.DistributeEvents, error) {
	args := m.Called(venID)
	return args.Get(0).(service.DistributeEvents), args.Error(1)
}

func (m *handlerMock) CreatedEvent(_ context.Context, venID string, rs []model.EventResponse) (service.Response, error) {
	args := m.Called(venID, rs)
	return service.Response{}, args.Error(0)
}

var testTopics = Topics{Prefix: "openadr"}

func startServer(t *testing.T, h EventHandler) *fakeBroker {
	t.Helper()
	b := newFakeBroker()
	require.NoError(t, NewServer(b, testTopics, h, nil).Start(context.Background()))
	return b
}

func TestServerSubscribesInbound(t *testing.T) {
	b := startServer(t, &handlerMock{})
	assert.Contains(t, b.subs, "openadr/+/oadrRequestEvent")
	assert.Contains(t, b.subs, "openadr/+/oadrCreatedEvent")
}

func TestServerRequestEvent(t *testing.T) {
	h := &handlerMock{}
	h.On("RequestEvent", "VEN123").Return(service.DistributeEvents{
		VTNID:  "vtn",
		Events: []model.Event{outEvent("EVT1", model.StatusFar)},
	}, nil)
	b := startServer(t, h)

	b.deliver(t, testTopics, testTopics.RequestEvent("VEN123"), RequestEventMessage{RequestID: "r1"})

	pubs := b.sent()
	require.Len(t, pubs, 1)
	assert.Equal(t, "openadr/VEN123/oadrDistributeEvent", pubs[0].topic)
	msg := decode[DistributeEventMessage](t, pubs[0])
	assert.Equal(t, "r1", msg.RequestID)
	assert.Equal(t, "vtn", msg.VTNID)
	require.Len(t, msg.Events, 1)
	assert.Equal(t, "EVT1", msg.Events[0].ID())
	h.AssertExpectations(t)
}

func TestServerRequestEventFailure(t *testing.T) {
	h := &handlerMock{}
	h.On("RequestEvent", "VEN123").Return(service.DistributeEvents{}, service.ErrInvalidHandlerResult)
	b := startServer(t, h)

	b.deliver(t, testTopics, testTopics.RequestEvent("VEN123"), RequestEventMessage{RequestID: "r1"})

	pubs := b.sent()
	require.Len(t, pubs, 1)
	assert.Equal(t, "openadr/VEN123/oadrResponse", pubs[0].topic)
	resp := decode[ResponseMessage](t, pubs[0])
	assert.Equal(t, CodeError, resp.ResponseCode)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestServerRejectsBadPayloads(t *testing.T) {
	h := &handlerMock{}
	b := startServer(t, h)

	b.deliver(t, testTopics, testTopics.RequestEvent("VEN123"), []byte("{"))
	b.deliver(t, testTopics, testTopics.CreatedEvent("VEN123"), CreatedEventMessage{RequestID: "r2", VenID: "OTHER"})

	pubs := b.sent()
	require.Len(t, pubs, 2)
	for _, p := range pubs {
		assert.Equal(t, "openadr/VEN123/oadrResponse", p.topic)
		assert.Equal(t, CodeBadRequest, decode[ResponseMessage](t, p).ResponseCode)
	}
	h.AssertNotCalled(t, "RequestEvent", mock.Anything)
	h.AssertNotCalled(t, "CreatedEvent", mock.Anything, mock.Anything)
}

func TestServerCreatedEvent(t *testing.T) {
	rs := []model.EventResponse{{EventID: "EVT1", OptType: model.OptIn}, {EventID: "EVT2", OptType: model.OptOut}}
	h := &handlerMock{}
	h.On("CreatedEvent", "VEN123", rs).Return(nil).Once()
	h.On("CreatedEvent", "VEN9", mock.Anything).Return(errors.New("stopped")).Once()
	b := startServer(t, h)

	b.deliver(t, testTopics, testTopics.CreatedEvent("VEN123"), CreatedEventMessage{RequestID: "r1", VenID: "VEN123", EventResponses: rs})
	b.deliver(t, testTopics, testTopics.CreatedEvent("VEN9"), CreatedEventMessage{RequestID: "r2"})

	pubs := b.sent()
	require.Len(t, pubs, 2)
	assert.Equal(t, "openadr/VEN123/oadrResponse", pubs[0].topic)
	assert.Equal(t, ResponseMessage{RequestID: "r1", ResponseCode: CodeOK}, decode[ResponseMessage](t, pubs[0]))
	assert.Equal(t, CodeError, decode[ResponseMessage](t, pubs[1]).ResponseCode)
	h.AssertExpectations(t)
}

func TestServerWithEventService(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	mt := scheduler.NewManualTimer(t0)
	b := newFakeBroker()
	outbox := NewOutbox(b, testTopics, "vtn-1", 16, nil)

	var svc *service.EventService
	hooks := service.Hooks{RequestEvent: func(ctx context.Context, venID string) (service.Selection, error) {
		evs, err := svc.PendingFor(ctx, venID)
		if err != nil {
			return service.Selection{}, err
		}
		return service.Many(evs), nil
	}}
	svc, err := service.NewEventService(service.Config{VTNID: "vtn-1"}, outbox, service.WithTimer(mt), service.WithHooks(hooks))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()
	go outbox.Run(ctx)
	require.NoError(t, NewServer(b, testTopics, svc, nil).Start(ctx))

	_, err = svc.AddEvent(ctx, "VEN123", model.Event{
		Descriptor:   model.EventDescriptor{EventID: "EVT1"},
		ActivePeriod: model.ActivePeriod{DTStart: t0.Add(10 * time.Second), Duration: 5 * time.Second},
	}, nil)
	require.NoError(t, err)
	b.waitFor(t, 1)

	b.deliver(t, testTopics, testTopics.RequestEvent("VEN123"), RequestEventMessage{RequestID: "r1"})
	pubs := b.waitFor(t, 2)
	reply := decode[DistributeEventMessage](t, pubs[1])
	require.Len(t, reply.Events, 1)
	assert.Equal(t, "EVT1", reply.Events[0].ID())

	b.deliver(t, testTopics, testTopics.CreatedEvent("VEN123"), CreatedEventMessage{
		RequestID:      "r2",
		EventResponses: []model.EventResponse{{EventID: "EVT1", OptType: model.OptIn}},
	})
	pubs = b.waitFor(t, 3)
	assert.Equal(t, CodeOK, decode[ResponseMessage](t, pubs[2]).ResponseCode)

	mt.Advance(10 * time.Second)
	pubs = b.waitFor(t, 4)
	active := decode[DistributeEventMessage](t, pubs[3])
	assert.Equal(t, model.StatusActive, active.Events[0].Status())

	mt.Advance(5 * time.Second)
	pubs = b.waitFor(t, 5)
	done := decode[DistributeEventMessage](t, pubs[4])
	assert.Equal(t, model.StatusCompleted, done.Events[0].Status())
	assert.Equal(t, "openadr/VEN123/oadrDistributeEvent", pubs[4].topic)
}
