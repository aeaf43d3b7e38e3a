package models

import "encoding/json"

// Event names carried in the "event" field of every websocket frame.
const (
	// Inbound, client to server.
	EventCreatePit        = "createPit"
	EventJoinPit          = "joinPit"
	EventLeavePit         = "leavePit"
	EventSendOffer        = "sendOffer"
	EventSendAnswer       = "sendAnswer"
	EventSendIceCandidate = "sendIceCandidate"

	// Outbound, server to client.
	EventConnected       = "connected"
	EventPitCreated      = "pitCreated"
	EventPitJoined       = "pitJoined"
	EventNewPitMember    = "newPitMember"
	EventPitMemberLeft   = "pitMemberLeft"
	EventPitLeft         = "pitLeft"
	EventNewOffer        = "newOffer"
	EventNewAnswer       = "newAnswer"
	EventNewIceCandidate = "newIceCandidate"
	EventError           = "error"
)

// SignalKind identifies which of the three relayed negotiation messages is being sent.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalIceCandidate SignalKind = "iceCandidate"
)

// Envelope wraps every message exchanged over the signaling socket
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreatePitRequest is the data of an inbound createPit event.
// PitID may be empty, in which case the server picks one.
type CreatePitRequest struct {
	PitID string `json:"pitId,omitempty"`
	Join  bool   `json:"join,omitempty"`
}

type JoinPitRequest struct {
	PitID string `json:"pitId"`
}

// SignalRequest is the data of sendOffer, sendAnswer and sendIceCandidate.
type SignalRequest struct {
	ToPeerID string          `json:"toPeerId"`
	Payload  json.RawMessage `json:"payload"`
}

type ConnectedPayload struct {
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName"`
}

type PitCreatedPayload struct {
	PitID string `json:"pitId"`
}

// PitJoinedPayload confirms a join and lists everyone already in the pit,
// so the joiner knows whom to send offers to.
type PitJoinedPayload struct {
	PitID   string      `json:"pitId"`
	Members []PitMember `json:"members"`
}

type NewPitMemberPayload struct {
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName"`
}

type PitMemberLeftPayload struct {
	PeerID string `json:"peerId"`
}

type PitLeftPayload struct {
	PitID string `json:"pitId"`
}

type OfferPayload struct {
	FromPeerID string          `json:"fromPeerId"`
	Offer      json.RawMessage `json:"offer"`
}

type AnswerPayload struct {
	FromPeerID string          `json:"fromPeerId"`
	Answer     json.RawMessage `json:"answer"`
}

type IceCandidatePayload struct {
	FromPeerID   string          `json:"fromPeerId"`
	IceCandidate json.RawMessage `json:"newIceCandidate"`
}

// ErrorPayload is sent only to the peer whose request failed.
type ErrorPayload struct {
	Code         string `json:"code"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	CurrentPitID string `json:"currentPitId,omitempty"`
}
