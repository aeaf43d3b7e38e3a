package session

import (
	"cmp"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mossy-p/pit-signaling/internal/models"
)

// Peer is one live connection. It exists from Connect until Disconnect,
// independently of pit membership.
type Peer struct {
	ID          string
	DisplayName string
	ConnectedAt time.Time
}

type pit struct {
	id        string
	creatorID string
	createdAt time.Time

	// ownerPeer is the connected peer that created the pit over the socket,
	// empty for pits created through the admin API.
	ownerPeer string

	// members maps peer id to the sequence number of its join, so snapshots
	// can list members in the order they arrived.
	members map[string]uint64
}

// state is the peer registry, pit store and membership index. It has no
// locking of its own; Manager holds its mutex around every access.
//
// Invariant: index[p] == g  <=>  p is a key of pits[g].members, and every
// key of every members map is also a key of peers. owned[p] lists the live
// pits whose ownerPeer is p.
type state struct {
	peers   map[string]*Peer
	pits    map[string]*pit
	index   map[string]string
	owned   map[string]map[string]struct{}
	joinSeq uint64
}

func newState() state {
	return state{
		peers: make(map[string]*Peer),
		pits:  make(map[string]*pit),
		index: make(map[string]string),
		owned: make(map[string]map[string]struct{}),
	}
}

func (s *state) addPit(p *pit) {
	s.pits[p.id] = p
	if p.ownerPeer == "" {
		return
	}
	set, ok := s.owned[p.ownerPeer]
	if !ok {
		set = make(map[string]struct{})
		s.owned[p.ownerPeer] = set
	}
	set[p.id] = struct{}{}
}

func (s *state) dropPit(p *pit) {
	delete(s.pits, p.id)
	if set, ok := s.owned[p.ownerPeer]; ok {
		delete(set, p.id)
		if len(set) == 0 {
			delete(s.owned, p.ownerPeer)
		}
	}
}

// dropOwnedEmpty destroys the still-empty pits peerID created and forgets the
// rest of its ownership. It returns the destroyed pit ids in sorted order.
func (s *state) dropOwnedEmpty(peerID string) []string {
	var dropped []string
	for id := range s.owned[peerID] {
		p := s.pits[id]
		p.ownerPeer = ""
		if len(p.members) == 0 {
			delete(s.pits, id)
			dropped = append(dropped, id)
		}
	}
	delete(s.owned, peerID)
	slices.Sort(dropped)
	return dropped
}

func (s *state) addMember(p *pit, peerID string) {
	s.joinSeq++
	p.members[peerID] = s.joinSeq
	s.index[peerID] = p.id
}

// removeMember drops peerID from its pit and destroys the pit when that
// leaves it empty. It returns the pit the peer was in.
func (s *state) removeMember(peerID string) (p *pit, destroyed bool) {
	pitID, ok := s.index[peerID]
	if !ok {
		return nil, false
	}
	p = s.pits[pitID]
	delete(p.members, peerID)
	delete(s.index, peerID)

	if len(p.members) == 0 {
		s.dropPit(p)
		destroyed = true
	}
	return p, destroyed
}

// memberIDs returns member ids in join order, skipping exclude.
func (s *state) memberIDs(p *pit, exclude string) []string {
	ids := make([]string, 0, len(p.members))
	for id := range p.members {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(p.members[a], p.members[b])
	})
	return ids
}

func (s *state) members(p *pit, exclude string) []models.PitMember {
	ids := s.memberIDs(p, exclude)
	out := make([]models.PitMember, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.PitMember{PeerID: id, DisplayName: s.peers[id].DisplayName})
	}
	return out
}

func (s *state) metadata(p *pit) models.PitMetadata {
	return models.PitMetadata{
		ID:        p.id,
		CreatorID: p.creatorID,
		CreatedAt: p.createdAt,
		Members:   s.members(p, ""),
	}
}

var peerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidPeerID reports whether id has the shape of a peer identity:
// 1 to 64 characters of letters, digits, '-' and '_'.
func ValidPeerID(id string) bool {
	return peerIDPattern.MatchString(id)
}

// ParsePitID validates a pit id and returns its canonical form.
func ParsePitID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidGroupID
	}
	return id.String(), nil
}
