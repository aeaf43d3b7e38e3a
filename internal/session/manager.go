// Package session holds the in-memory peer, pit and membership model and the
// state machine that drives it. Every exported Manager method is one atomic
// transition: it runs entirely under a single mutex, leaves state unchanged
// when it fails, and emits its notifications only after the mutation.
package session

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/metrics"
	"github.com/mossy-p/pit-signaling/internal/models"
)

// Notifier delivers an outbound event to one connected peer. Implementations
// must not block and must not call back into the Manager.
type Notifier interface {
	SendTo(peerID, event string, payload any)
}

// Observer is told about pit lifecycle changes, in transition order. It is
// called with the state lock held, so implementations must not block.
type Observer interface {
	PitCreated(meta models.PitMetadata)
	PitDestroyed(pitID string)
	MemberJoined(pitID string, member models.PitMember)
	MemberLeft(pitID, peerID string)
}

type Option func(*Manager)

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithNameGenerator replaces RandomDisplayName.
func WithNameGenerator(f func() string) Option {
	return func(m *Manager) { m.newName = f }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns all session state.
type Manager struct {
	mu       sync.Mutex
	st       state
	notify   Notifier
	observer Observer
	newName  func() string
	now      func() time.Time
}

func NewManager(notify Notifier, opts ...Option) *Manager {
	m := &Manager{
		st:       newState(),
		notify:   notify,
		observer: nopObserver{},
		newName:  RandomDisplayName,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notify == nil {
		m.notify = nopNotifier{}
	}
	return m
}

// Connect registers a new peer and greets it with its display name.
func (m *Manager) Connect(peerID string) (Peer, error) {
	if !ValidPeerID(peerID) {
		return Peer{}, m.fail("connect", ErrInvalidPeerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.st.peers[peerID]; exists {
		return Peer{}, m.fail("connect", ErrDuplicateConnection)
	}

	p := &Peer{ID: peerID, DisplayName: m.newName(), ConnectedAt: m.now()}
	m.st.peers[peerID] = p
	m.updateGauges()

	log.Info().Str("peer_id", peerID).Str("display_name", p.DisplayName).Msg("Peer connected")
	m.notify.SendTo(peerID, models.EventConnected, models.ConnectedPayload{
		PeerID:      peerID,
		DisplayName: p.DisplayName,
	})
	return *p, nil
}

// CreateGroup creates an empty pit on behalf of a connected peer. An empty
// pitID asks the server to pick one. With join set the requester is placed in
// the new pit as part of the same transition.
func (m *Manager) CreateGroup(requesterID, pitID string, join bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.st.peers[requesterID]; !ok {
		return "", m.fail("create_pit", ErrPeerNotRegistered)
	}
	id, err := m.resolveNewPitID(pitID)
	if err != nil {
		return "", m.fail("create_pit", err)
	}
	if join {
		if cur, in := m.st.index[requesterID]; in {
			return "", m.fail("create_pit", alreadyInGroup(cur))
		}
	}

	p := m.createLocked(id, requesterID, requesterID)
	m.notify.SendTo(requesterID, models.EventPitCreated, models.PitCreatedPayload{PitID: id})

	if join {
		m.joinLocked(m.st.peers[requesterID], p)
	}
	return id, nil
}

// CreatePit creates an empty pit without a requesting peer, for the admin API.
func (m *Manager) CreatePit(pitID, creatorID string) (models.PitMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.resolveNewPitID(pitID)
	if err != nil {
		return models.PitMetadata{}, m.fail("create_pit", err)
	}
	p := m.createLocked(id, creatorID, "")
	return m.st.metadata(p), nil
}

// JoinGroup puts a connected peer into an existing pit. A peer is in at most
// one pit; joining while already in one fails rather than moving it.
func (m *Manager) JoinGroup(peerID, pitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	peer, ok := m.st.peers[peerID]
	if !ok {
		return m.fail("join_pit", ErrPeerNotRegistered)
	}
	id, err := ParsePitID(pitID)
	if err != nil {
		return m.fail("join_pit", err)
	}
	p, ok := m.st.pits[id]
	if !ok {
		return m.fail("join_pit", ErrGroupNotFound)
	}
	if cur, in := m.st.index[peerID]; in {
		return m.fail("join_pit", alreadyInGroup(cur))
	}

	m.joinLocked(peer, p)
	return nil
}

// LeaveGroup takes a peer out of its pit and destroys the pit if it is now empty.
func (m *Manager) LeaveGroup(peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, in := m.st.index[peerID]; !in {
		return m.fail("leave_pit", ErrPeerNotInGroup)
	}

	pitID := m.leaveLocked(peerID)
	m.notify.SendTo(peerID, models.EventPitLeft, models.PitLeftPayload{PitID: pitID})
	return nil
}

// Disconnect removes a peer and everything that refers to it, including pits
// it created over the socket that nobody has joined. Unknown peers are
// ignored, so a disconnect racing another cleanup is harmless.
func (m *Manager) Disconnect(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.st.peers[peerID]; !ok {
		return
	}
	if _, in := m.st.index[peerID]; in {
		m.leaveLocked(peerID)
	}
	for _, id := range m.st.dropOwnedEmpty(peerID) {
		m.observer.PitDestroyed(id)
		log.Info().Str("pit_id", id).Str("peer_id", peerID).Msg("Removed unused pit of departing peer")
	}
	delete(m.st.peers, peerID)
	m.updateGauges()

	log.Info().Str("peer_id", peerID).Msg("Peer disconnected")
}

// DeletePit removes an empty pit. Pits created by an admin user can only be
// deleted by that user.
func (m *Manager) DeletePit(pitID, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := ParsePitID(pitID)
	if err != nil {
		return m.fail("delete_pit", err)
	}
	p, ok := m.st.pits[id]
	if !ok {
		return m.fail("delete_pit", ErrGroupNotFound)
	}
	if len(p.members) > 0 {
		return m.fail("delete_pit", ErrPitNotEmpty)
	}
	if p.creatorID != "" && p.creatorID != requesterID {
		return m.fail("delete_pit", ErrNotPitCreator)
	}

	m.st.dropPit(p)
	m.observer.PitDestroyed(id)
	m.updateGauges()

	log.Info().Str("pit_id", id).Str("user_id", requesterID).Msg("Pit deleted")
	return nil
}

// Pit returns a snapshot of one pit.
func (m *Manager) Pit(pitID string) (models.PitMetadata, error) {
	id, err := ParsePitID(pitID)
	if err != nil {
		return models.PitMetadata{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.st.pits[id]
	if !ok {
		return models.PitMetadata{}, ErrGroupNotFound
	}
	return m.st.metadata(p), nil
}

// Pits returns snapshots of every pit, oldest first.
func (m *Manager) Pits() []models.PitMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.PitMetadata, 0, len(m.st.pits))
	for _, p := range m.st.pits {
		out = append(out, m.st.metadata(p))
	}
	slices.SortFunc(out, func(a, b models.PitMetadata) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *Manager) Peer(peerID string) (Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.st.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// PitOf returns the pit a peer is currently in.
func (m *Manager) PitOf(peerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.st.index[peerID]
	return id, ok
}

type Stats struct {
	Peers   int `json:"peers"`
	Pits    int `json:"pits"`
	Members int `json:"members"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Peers: len(m.st.peers), Pits: len(m.st.pits), Members: len(m.st.index)}
}

func (m *Manager) resolveNewPitID(raw string) (string, error) {
	if raw == "" {
		return uuid.NewString(), nil
	}
	id, err := ParsePitID(raw)
	if err != nil {
		return "", err
	}
	if _, exists := m.st.pits[id]; exists {
		return "", errPitIDInUse
	}
	return id, nil
}

// createLocked adds an empty pit. ownerPeer, when set, is the connected peer
// whose departure reclaims the pit if it is still empty.
func (m *Manager) createLocked(id, creatorID, ownerPeer string) *pit {
	p := &pit{
		id:        id,
		creatorID: creatorID,
		createdAt: m.now(),
		ownerPeer: ownerPeer,
		members:   make(map[string]uint64),
	}
	m.st.addPit(p)
	m.observer.PitCreated(m.st.metadata(p))
	m.updateGauges()

	log.Info().Str("pit_id", id).Str("creator_id", creatorID).Msg("Pit created")
	return p
}

func (m *Manager) joinLocked(peer *Peer, p *pit) {
	others := m.st.members(p, "")
	m.st.addMember(p, peer.ID)
	member := models.PitMember{PeerID: peer.ID, DisplayName: peer.DisplayName}
	m.observer.MemberJoined(p.id, member)
	m.updateGauges()

	log.Info().Str("peer_id", peer.ID).Str("pit_id", p.id).Int("members", len(p.members)).Msg("Peer joined pit")

	m.notify.SendTo(peer.ID, models.EventPitJoined, models.PitJoinedPayload{PitID: p.id, Members: others})
	for _, other := range others {
		m.notify.SendTo(other.PeerID, models.EventNewPitMember, models.NewPitMemberPayload(member))
	}
}

// leaveLocked removes peerID from its pit and tells the remaining members.
// The caller has checked that the peer is in a pit.
func (m *Manager) leaveLocked(peerID string) string {
	p, destroyed := m.st.removeMember(peerID)
	m.observer.MemberLeft(p.id, peerID)
	if destroyed {
		m.observer.PitDestroyed(p.id)
	}
	m.updateGauges()

	ev := log.Info().Str("peer_id", peerID).Str("pit_id", p.id)
	if destroyed {
		ev.Msg("Peer left pit, removed empty pit")
		return p.id
	}
	ev.Int("members", len(p.members)).Msg("Peer left pit")

	for _, id := range m.st.memberIDs(p, "") {
		m.notify.SendTo(id, models.EventPitMemberLeft, models.PitMemberLeftPayload{PeerID: peerID})
	}
	return p.id
}

func (m *Manager) updateGauges() {
	metrics.PeersConnected.Set(float64(len(m.st.peers)))
	metrics.PitsActive.Set(float64(len(m.st.pits)))
	metrics.PitMembers.Set(float64(len(m.st.index)))
}

func (m *Manager) fail(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		metrics.RequestErrors.WithLabelValues(op, string(e.Code)).Inc()
	}
	log.Debug().Err(err).Str("op", op).Msg("Request rejected")
	return err
}

type nopNotifier struct{}

func (nopNotifier) SendTo(string, string, any) {}

type nopObserver struct{}

func (nopObserver) PitCreated(models.PitMetadata)         {}
func (nopObserver) PitDestroyed(string)                   {}
func (nopObserver) MemberJoined(string, models.PitMember) {}
func (nopObserver) MemberLeft(string, string)             {}
