package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/vtn/core/logger"
	"github.com/kilianp07/vtn/core/model"
	"github.com/kilianp07/vtn/core/service"
)

// EventHandler answers the inbound protocol operations.
type EventHandler interface {
	RequestEvent(ctx context.Context, venID string) (service.DistributeEvents, error)
	CreatedEvent(ctx context.Context, venID string, responses []model.EventResponse) (service.Response, error)
}

// Server routes oadrRequestEvent and oadrCreatedEvent messages from all VENs
// to an EventHandler and publishes the replies on the VEN's topics.
type Server struct {
	broker  Broker
	topics  Topics
	handler EventHandler
	log     logger.Logger
	ctx     context.Context
}

// NewServer returns a Server. Call Start to subscribe.
func NewServer(b Broker, topics Topics, h EventHandler, log logger.Logger) *Server {
	return &Server{broker: b, topics: topics, handler: h, log: logger.OrNop(log), ctx: context.Background()}
}

// Start subscribes to the inbound topics. Handlers use ctx for the calls
// they make into the service.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx
	if err := s.broker.Subscribe(s.topics.Inbound(service.OpRequestEvent), QoSRequest, s.onRequestEvent); err != nil {
		return err
	}
	return s.broker.Subscribe(s.topics.Inbound(service.OpCreatedEvent), QoSCreated, s.onCreatedEvent)
}

func (s *Server) venFromTopic(topic, op string) (string, error) {
	venID, got, ok := s.topics.Parse(topic)
	if !ok || got != op {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return venID, nil
}

func checkVen(topicVen, payloadVen string) error {
	if payloadVen != "" && payloadVen != topicVen {
		return fmt.Errorf("ven_id %q does not match topic ven %q", payloadVen, topicVen)
	}
	return nil
}

func (s *Server) onRequestEvent(_ paho.Client, msg paho.Message) {
	venID, err := s.venFromTopic(msg.Topic(), service.OpRequestEvent)
	if err != nil {
		s.log.Warnf("%v", err)
		return
	}
	var req RequestEventMessage
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.reply(venID, ResponseMessage{ResponseCode: CodeBadRequest, Description: err.Error()})
		return
	}
	if err := checkVen(venID, req.VenID); err != nil {
		s.reply(venID, ResponseMessage{RequestID: req.RequestID, ResponseCode: CodeBadRequest, Description: err.Error()})
		return
	}
	out, err := s.handler.RequestEvent(s.ctx, venID)
	if err != nil {
		s.log.Errorf("%s from %s: %v", service.OpRequestEvent, venID, err)
		s.reply(venID, ResponseMessage{RequestID: req.RequestID, ResponseCode: CodeError, Description: err.Error()})
		return
	}
	s.publish(s.topics.DistributeEvent(venID), QoSDistribute, DistributeEventMessage{
		RequestID: req.RequestID,
		VTNID:     out.VTNID,
		Events:    out.Events,
	})
}

func (s *Server) onCreatedEvent(_ paho.Client, msg paho.Message) {
	venID, err := s.venFromTopic(msg.Topic(), service.OpCreatedEvent)
	if err != nil {
		s.log.Warnf("%v", err)
		return
	}
	var req CreatedEventMessage
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.reply(venID, ResponseMessage{ResponseCode: CodeBadRequest, Description: err.Error()})
		return
	}
	if err := checkVen(venID, req.VenID); err != nil {
		s.reply(venID, ResponseMessage{RequestID: req.RequestID, ResponseCode: CodeBadRequest, Description: err.Error()})
		return
	}
	if _, err := s.handler.CreatedEvent(s.ctx, venID, req.EventResponses); err != nil {
		s.log.Errorf("%s from %s: %v", service.OpCreatedEvent, venID, err)
		s.reply(venID, ResponseMessage{RequestID: req.RequestID, ResponseCode: CodeError, Description: err.Error()})
		return
	}
	s.reply(venID, ResponseMessage{RequestID: req.RequestID, ResponseCode: CodeOK})
}

func (s *Server) reply(venID string, r ResponseMessage) {
	s.publish(s.topics.Response(venID), QoSResponse, r)
}

func (s *Server) publish(topic, kind string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Errorf("encode reply for %s: %v", topic, err)
		return
	}
	if err := s.broker.Publish(s.ctx, topic, kind, payload); err != nil {
		s.log.Errorf("reply on %s: %v", topic, err)
	}
}
