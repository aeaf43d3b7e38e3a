package session

import (
	"encoding/json"
	"testing"

	"github.com/mossy-p/pit-signaling/internal/models"
)

// threeInPit connects peer1..peer3 into pitA and peer4 into pitB.
func threeInPit(t *testing.T) (*Manager, *recorder) {
	t.Helper()
	m, rec := newTestManager(t)
	mustConnect(t, m, "peer1", "peer2", "peer3", "peer4")
	mustCreate(t, m, "peer1", pitA)
	mustCreate(t, m, "peer4", pitB)
	for _, id := range []string{"peer1", "peer2", "peer3"} {
		mustJoin(t, m, id, pitA)
	}
	mustJoin(t, m, "peer4", pitB)
	rec.reset()
	return m, rec
}

func TestSendOffer_OnlyTargetReceives(t *testing.T) {
	m, rec := threeInPit(t)
	offer := json.RawMessage(`{"type":"offer","sdp":"test-sdp"}`)

	if err := m.SendOffer("peer1", "peer2", offer); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	got := rec.received("peer2", models.EventNewOffer)
	if len(got) != 1 {
		t.Fatalf("peer2 offers = %d, want 1", len(got))
	}
	p := got[0].(models.OfferPayload)
	if p.FromPeerID != "peer1" || string(p.Offer) != string(offer) {
		t.Errorf("unexpected payload: fromPeerId=%q offer=%s", p.FromPeerID, p.Offer)
	}
	if rec.countTo("peer1") != 0 || rec.countTo("peer3") != 0 {
		t.Error("sender and bystanders must receive nothing")
	}
}

func TestRelay_KindsMapToEvents(t *testing.T) {
	m, rec := threeInPit(t)

	answer := json.RawMessage(`{"type":"answer","sdp":"test-answer-sdp"}`)
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2113667326 192.168.1.100 54400 typ host","sdpMLineIndex":0,"sdpMid":"0"}`)

	if err := m.SendAnswer("peer2", "peer1", answer); err != nil {
		t.Fatalf("SendAnswer: %v", err)
	}
	if err := m.SendIceCandidate("peer1", "peer2", candidate); err != nil {
		t.Fatalf("SendIceCandidate: %v", err)
	}

	answers := rec.received("peer1", models.EventNewAnswer)
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(answers))
	}
	if a := answers[0].(models.AnswerPayload); a.FromPeerID != "peer2" || string(a.Answer) != string(answer) {
		t.Errorf("unexpected answer: %+v", a)
	}

	cands := rec.received("peer2", models.EventNewIceCandidate)
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	if c := cands[0].(models.IceCandidatePayload); string(c.IceCandidate) != string(candidate) {
		t.Errorf("candidate altered: %s", c.IceCandidate)
	}

	b, err := json.Marshal(cands[0])
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatal(err)
	}
	if _, ok := wire["newIceCandidate"]; !ok {
		t.Errorf("wire form missing newIceCandidate field: %s", b)
	}
}

func TestRelay_CrossPitRejected(t *testing.T) {
	m, rec := threeInPit(t)

	err := m.SendOffer("peer1", "peer4", json.RawMessage(`{}`))
	assertCode(t, err, ErrPeerNotInSameGroup)
	if rec.countTo("peer4") != 0 {
		t.Error("peer in another pit received a message")
	}
}

func TestRelay_Rejections(t *testing.T) {
	m, rec := threeInPit(t)
	mustConnect(t, m, "loner")
	payload := json.RawMessage(`{"sdp":"x"}`)

	tests := []struct {
		name    string
		from    string
		to      string
		payload json.RawMessage
		want    *Error
	}{
		{"unknown target", "peer1", "non-existent-peer-id", payload, ErrPeerNotInSameGroup},
		{"target not in a pit", "peer1", "loner", payload, ErrPeerNotInSameGroup},
		{"sender not in a pit", "loner", "peer1", payload, ErrNotInGroup},
		{"sender unknown", "ghost", "peer1", payload, ErrNotInGroup},
		{"malformed target", "peer1", `{"this is not valid": "invalid-peer-id"}`, payload, ErrInvalidPeerID},
		{"empty target", "peer1", "", payload, ErrInvalidPeerID},
		{"missing payload", "peer1", "peer2", nil, ErrMissingPayload},
		{"null payload", "peer1", "peer2", json.RawMessage(" null "), ErrMissingPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, m.SendOffer(tt.from, tt.to, tt.payload), tt.want)
		})
	}

	for _, id := range []string{"peer1", "peer2", "peer3", "peer4", "loner"} {
		if n := rec.countTo(id); n != 0 {
			t.Errorf("%s received %d messages", id, n)
		}
	}
	checkInvariants(t, m)
}

func TestRelay_MalformedTargetCheckedBeforeMembership(t *testing.T) {
	m, _ := newTestManager(t)
	mustConnect(t, m, "loner")

	// the sender is in no pit, but the bad target id is reported first
	assertCode(t, m.SendOffer("loner", "bad id!", json.RawMessage(`{}`)), ErrInvalidPeerID)
}

func TestRelay_TargetGoneAfterDisconnect(t *testing.T) {
	m, rec := threeInPit(t)
	m.Disconnect("peer2")
	rec.reset()

	assertCode(t, m.SendOffer("peer1", "peer2", json.RawMessage(`{}`)), ErrPeerNotInSameGroup)
	if rec.countTo("peer2") != 0 {
		t.Error("disconnected peer received a message")
	}
}
