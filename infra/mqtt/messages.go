package mqtt

import (
	"github.com/kilianp07/vtn/core/model"
)

// RequestEventMessage is published by a VEN on its oadrRequestEvent topic.
type RequestEventMessage struct {
	RequestID string `json:"request_id"`
	VenID     string `json:"ven_id,omitempty"`
}

// CreatedEventMessage is published by a VEN on its oadrCreatedEvent topic.
type CreatedEventMessage struct {
	RequestID      string                `json:"request_id"`
	VenID          string                `json:"ven_id,omitempty"`
	EventResponses []model.EventResponse `json:"event_responses"`
}

// DistributeEventMessage is published to a VEN, either as the reply to a
// request or when one of its events changes status.
type DistributeEventMessage struct {
	RequestID string        `json:"request_id,omitempty"`
	VTNID     string        `json:"vtn_id"`
	Events    []model.Event `json:"events"`
}

// ResponseMessage is the oadrResponse reply.
type ResponseMessage struct {
	RequestID    string `json:"request_id"`
	ResponseCode int    `json:"response_code"`
	Description  string `json:"response_description,omitempty"`
}

// Response codes used in replies.
const (
	CodeOK         = 200
	CodeBadRequest = 400
	CodeError      = 500
)
