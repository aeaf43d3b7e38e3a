package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mossy-p/pit-signaling/internal/models"
)

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
	name string
}

func dialPeer(t *testing.T, srv *httptest.Server) *wsPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	var hello models.ConnectedPayload
	p.expect(models.EventConnected, &hello)
	if hello.PeerID == "" || hello.DisplayName == "" {
		t.Fatalf("incomplete greeting: %+v", hello)
	}
	p.id, p.name = hello.PeerID, hello.DisplayName
	return p
}

func (p *wsPeer) send(event string, data any) {
	p.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		p.t.Fatal(err)
	}
	if err := p.conn.WriteJSON(models.Envelope{Event: event, Data: raw}); err != nil {
		p.t.Fatalf("write %s: %v", event, err)
	}
}

func (p *wsPeer) sendRaw(msg string) {
	p.t.Helper()
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// expect reads the next frame, which must carry event, and decodes its data into v.
func (p *wsPeer) expect(event string, v any) json.RawMessage {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env models.Envelope
	if err := p.conn.ReadJSON(&env); err != nil {
		p.t.Fatalf("waiting for %s: %v", event, err)
	}
	if env.Event != event {
		p.t.Fatalf("got event %s (%s), want %s", env.Event, env.Data, event)
	}
	if v != nil {
		if err := json.Unmarshal(env.Data, v); err != nil {
			p.t.Fatalf("decode %s: %v", event, err)
		}
	}
	return env.Data
}

func (p *wsPeer) expectError(code string) models.ErrorPayload {
	p.t.Helper()
	var e models.ErrorPayload
	p.expect(models.EventError, &e)
	if e.Code != code {
		p.t.Fatalf("error code = %s (%s), want %s", e.Code, e.Message, code)
	}
	return e
}

func newWSServer(t *testing.T) (*testServer, *httptest.Server) {
	t.Helper()
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(func() {
		s.hub.CloseAll()
		srv.Close()
	})
	return s, srv
}

func TestSignaling_JoinAndRelay(t *testing.T) {
	s, srv := newWSServer(t)
	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)

	alice.send(models.EventCreatePit, models.CreatePitRequest{Join: true})
	var created models.PitCreatedPayload
	alice.expect(models.EventPitCreated, &created)
	var joined models.PitJoinedPayload
	alice.expect(models.EventPitJoined, &joined)
	if joined.PitID != created.PitID || len(joined.Members) != 0 {
		t.Fatalf("creator join = %+v", joined)
	}

	bob.send(models.EventJoinPit, models.JoinPitRequest{PitID: created.PitID})
	bob.expect(models.EventPitJoined, &joined)
	if len(joined.Members) != 1 || joined.Members[0].PeerID != alice.id || joined.Members[0].DisplayName != alice.name {
		t.Fatalf("bob sees members %+v", joined.Members)
	}
	var member models.NewPitMemberPayload
	alice.expect(models.EventNewPitMember, &member)
	if member.PeerID != bob.id || member.DisplayName != bob.name {
		t.Fatalf("alice told about %+v", member)
	}

	offer := `{"type":"offer","sdp":"v=0\r\ns=<pit>"}`
	alice.sendRaw(`{"event":"sendOffer","data":{"toPeerId":"` + bob.id + `","payload":` + offer + `}}`)
	var gotOffer models.OfferPayload
	bob.expect(models.EventNewOffer, &gotOffer)
	if gotOffer.FromPeerID != alice.id || string(gotOffer.Offer) != offer {
		t.Fatalf("offer = %s from %s", gotOffer.Offer, gotOffer.FromPeerID)
	}

	answer := `{"type":"answer","sdp":"v=0"}`
	bob.sendRaw(`{"event":"sendAnswer","data":{"toPeerId":"` + alice.id + `","payload":` + answer + `}}`)
	var gotAnswer models.AnswerPayload
	alice.expect(models.EventNewAnswer, &gotAnswer)
	if gotAnswer.FromPeerID != bob.id || string(gotAnswer.Answer) != answer {
		t.Fatalf("answer = %s from %s", gotAnswer.Answer, gotAnswer.FromPeerID)
	}

	cand := `{"candidate":"candidate:1 1 udp 2122260223 10.0.0.2 54321 typ host","sdpMid":"0"}`
	bob.sendRaw(`{"event":"sendIceCandidate","data":{"toPeerId":"` + alice.id + `","payload":` + cand + `}}`)
	data := alice.expect(models.EventNewIceCandidate, nil)
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	if string(wire["newIceCandidate"]) != cand {
		t.Fatalf("candidate = %s", data)
	}

	if got := s.sessions.Stats(); got.Peers != 2 || got.Pits != 1 || got.Members != 2 {
		t.Errorf("stats = %+v", got)
	}
}

func TestSignaling_LeaveAndDisconnect(t *testing.T) {
	s, srv := newWSServer(t)
	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)

	alice.send(models.EventCreatePit, models.CreatePitRequest{PitID: testPitID, Join: true})
	alice.expect(models.EventPitCreated, nil)
	alice.expect(models.EventPitJoined, nil)
	bob.send(models.EventJoinPit, models.JoinPitRequest{PitID: testPitID})
	bob.expect(models.EventPitJoined, nil)
	alice.expect(models.EventNewPitMember, nil)

	bob.send(models.EventLeavePit, nil)
	var left models.PitLeftPayload
	bob.expect(models.EventPitLeft, &left)
	if left.PitID != testPitID {
		t.Errorf("pitLeft = %+v", left)
	}
	var gone models.PitMemberLeftPayload
	alice.expect(models.EventPitMemberLeft, &gone)
	if gone.PeerID != bob.id {
		t.Errorf("pitMemberLeft = %+v", gone)
	}

	bob.send(models.EventJoinPit, models.JoinPitRequest{PitID: testPitID})
	bob.expect(models.EventPitJoined, nil)
	alice.expect(models.EventNewPitMember, nil)

	bob.conn.Close()
	alice.expect(models.EventPitMemberLeft, &gone)
	if gone.PeerID != bob.id {
		t.Errorf("pitMemberLeft after disconnect = %+v", gone)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.sessions.Stats().Peers != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stats after disconnect = %+v", s.sessions.Stats())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := s.sessions.Peer(bob.id); ok {
		t.Error("disconnected peer still registered")
	}
	if got := s.sessions.Stats(); got.Pits != 1 || got.Members != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestSignaling_Errors(t *testing.T) {
	_, srv := newWSServer(t)
	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)

	alice.sendRaw("not json")
	alice.expectError(codeMalformedMessage)

	alice.sendRaw(`{"event":"dance"}`)
	alice.expectError(codeUnknownEvent)

	alice.sendRaw(`{"event":"joinPit","data":"nope"}`)
	alice.expectError(codeMalformedMessage)

	alice.send(models.EventJoinPit, models.JoinPitRequest{PitID: "not-a-uuid"})
	alice.expectError("InvalidGroupId")

	alice.send(models.EventJoinPit, models.JoinPitRequest{PitID: testPitID})
	alice.expectError("GroupNotFound")

	alice.send(models.EventLeavePit, nil)
	alice.expectError("PeerNotInGroup")

	alice.sendRaw(`{"event":"sendOffer","data":{"toPeerId":"` + bob.id + `","payload":{"sdp":"x"}}}`)
	alice.expectError("NotInGroup")

	alice.sendRaw(`{"event":"sendOffer","data":{"toPeerId":"bad id!","payload":{"sdp":"x"}}}`)
	e := alice.expectError("InvalidPeerId")
	if e.Kind != "InvalidInput" {
		t.Errorf("kind = %s", e.Kind)
	}

	alice.sendRaw(`{"event":"sendOffer","data":{"toPeerId":"` + bob.id + `"}}`)
	alice.expectError("MissingPayload")

	alice.send(models.EventCreatePit, models.CreatePitRequest{PitID: testPitID, Join: true})
	alice.expect(models.EventPitCreated, nil)
	alice.expect(models.EventPitJoined, nil)

	alice.send(models.EventJoinPit, models.JoinPitRequest{PitID: testPitID})
	e = alice.expectError("AlreadyInGroup")
	if e.CurrentPitID != testPitID {
		t.Errorf("currentPitId = %q", e.CurrentPitID)
	}

	alice.sendRaw(`{"event":"sendOffer","data":{"toPeerId":"` + bob.id + `","payload":{"sdp":"x"}}}`)
	alice.expectError("PeerNotInSameGroup")

	// bob saw none of alice's failures
	bob.send(models.EventLeavePit, nil)
	bob.expectError("PeerNotInGroup")
}
