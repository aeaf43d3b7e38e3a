package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/metrics"
	"github.com/mossy-p/pit-signaling/internal/models"
	"github.com/mossy-p/pit-signaling/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// Transport-level error codes, reported alongside session error codes.
const (
	codeMalformedMessage = "MalformedMessage"
	codeUnknownEvent     = "UnknownEvent"
)

type protocolError struct {
	code    string
	message string
}

func (e *protocolError) Error() string { return e.code + ": " + e.message }

var signalKinds = map[string]models.SignalKind{
	models.EventSendOffer:        models.SignalOffer,
	models.EventSendAnswer:       models.SignalAnswer,
	models.EventSendIceCandidate: models.SignalIceCandidate,
}

// HandleSignaling upgrades the request and runs one peer session until the
// socket closes.
func (h *Handler) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	// The connection identity is minted here and never supplied by the client.
	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, h.Signaling.SendBuffer),
	}

	// Register before Connect so the connected greeting has somewhere to go.
	h.Hub.register(client)
	if _, err := h.Sessions.Connect(client.ID); err != nil {
		log.Error().Err(err).Str("peer_id", client.ID).Msg("Failed to register peer")
		h.Hub.unregister(client)
		conn.Close()
		return
	}
	metrics.WebsocketConnections.Inc()

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.Sessions.Disconnect(c.ID)
		h.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(h.Signaling.MaxMessageBytes)
	c.Conn.SetReadDeadline(time.Now().Add(h.Signaling.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(h.Signaling.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("peer_id", c.ID).Msg("WebSocket error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.sendError(c.ID, &protocolError{code: codeMalformedMessage, message: "message is not a valid envelope"})
			continue
		}

		if err := h.dispatch(c, env); err != nil {
			h.sendError(c.ID, err)
		}
	}
}

// dispatch routes one inbound event to the session manager.
func (h *Handler) dispatch(c *Client, env models.Envelope) error {
	switch env.Event {
	case models.EventCreatePit:
		var req models.CreatePitRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		_, err := h.Sessions.CreateGroup(c.ID, req.PitID, req.Join)
		return err

	case models.EventJoinPit:
		var req models.JoinPitRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		return h.Sessions.JoinGroup(c.ID, req.PitID)

	case models.EventLeavePit:
		return h.Sessions.LeaveGroup(c.ID)

	case models.EventSendOffer, models.EventSendAnswer, models.EventSendIceCandidate:
		var req models.SignalRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		return h.Sessions.Relay(signalKinds[env.Event], c.ID, req.ToPeerID, req.Payload)

	default:
		return &protocolError{code: codeUnknownEvent, message: fmt.Sprintf("unknown event %q", env.Event)}
	}
}

func decodeData(env models.Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &protocolError{code: codeMalformedMessage, message: fmt.Sprintf("invalid data for %s", env.Event)}
	}
	return nil
}

// sendError reports a failed request to the requesting peer only.
func (h *Handler) sendError(peerID string, err error) {
	h.Hub.SendTo(peerID, models.EventError, errorPayload(err))
}

func errorPayload(err error) models.ErrorPayload {
	var se *session.Error
	if errors.As(err, &se) {
		return models.ErrorPayload{
			Code:         string(se.Code),
			Kind:         string(se.Kind),
			Message:      se.Message,
			CurrentPitID: se.PitID,
		}
	}
	var pe *protocolError
	if errors.As(err, &pe) {
		return models.ErrorPayload{
			Code:    pe.code,
			Kind:    string(session.KindInvalidInput),
			Message: pe.message,
		}
	}
	log.Error().Err(err).Msg("Unexpected request error")
	return models.ErrorPayload{Code: "Internal", Kind: "Internal", Message: "internal error"}
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(h.Signaling.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(h.Signaling.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("peer_id", c.ID).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(h.Signaling.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
