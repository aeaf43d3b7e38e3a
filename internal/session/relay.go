package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/metrics"
	"github.com/mossy-p/pit-signaling/internal/models"
)

func (m *Manager) SendOffer(fromPeerID, toPeerID string, offer json.RawMessage) error {
	return m.Relay(models.SignalOffer, fromPeerID, toPeerID, offer)
}

func (m *Manager) SendAnswer(fromPeerID, toPeerID string, answer json.RawMessage) error {
	return m.Relay(models.SignalAnswer, fromPeerID, toPeerID, answer)
}

func (m *Manager) SendIceCandidate(fromPeerID, toPeerID string, candidate json.RawMessage) error {
	return m.Relay(models.SignalIceCandidate, fromPeerID, toPeerID, candidate)
}

// Relay forwards payload from one peer to another member of the same pit.
// The payload is passed through byte for byte; only its presence is checked.
// Nothing is sent back to the sender on success.
func (m *Manager) Relay(kind models.SignalKind, fromPeerID, toPeerID string, payload json.RawMessage) error {
	op := "send_" + string(kind)

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return m.fail(op, ErrMissingPayload)
	}
	if !ValidPeerID(toPeerID) {
		return m.fail(op, ErrInvalidPeerID)
	}
	event, body, ok := signalMessage(kind, fromPeerID, payload)
	if !ok {
		return fmt.Errorf("unknown signal kind %q", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pitID, in := m.st.index[fromPeerID]
	if !in {
		return m.fail(op, ErrNotInGroup)
	}
	// A target that disconnected since the sender last looked has no index
	// entry and lands here too.
	if target, ok := m.st.index[toPeerID]; !ok || target != pitID {
		return m.fail(op, ErrPeerNotInSameGroup)
	}

	m.notify.SendTo(toPeerID, event, body)
	metrics.SignalsRelayed.WithLabelValues(string(kind)).Inc()

	log.Debug().
		Str("kind", string(kind)).
		Str("from_peer_id", fromPeerID).
		Str("to_peer_id", toPeerID).
		Str("pit_id", pitID).
		Msg("Relayed signal")
	return nil
}

func signalMessage(kind models.SignalKind, from string, payload json.RawMessage) (string, any, bool) {
	switch kind {
	case models.SignalOffer:
		return models.EventNewOffer, models.OfferPayload{FromPeerID: from, Offer: payload}, true
	case models.SignalAnswer:
		return models.EventNewAnswer, models.AnswerPayload{FromPeerID: from, Answer: payload}, true
	case models.SignalIceCandidate:
		return models.EventNewIceCandidate, models.IceCandidatePayload{FromPeerID: from, IceCandidate: payload}, true
	default:
		return "", nil, false
	}
}
