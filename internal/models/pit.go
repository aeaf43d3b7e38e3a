package models

import "time"

// PitMember is a peer as seen by other members and by the admin API
type PitMember struct {
	PeerID      string `json:"peerId"`
	DisplayName string `json:"displayName"`
}

// PitMetadata describes a pit for the admin API and the redis directory.
type PitMetadata struct {
	ID        string      `json:"pitId"`
	CreatorID string      `json:"creatorId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Members   []PitMember `json:"members"`
}

// CreatePitHTTPRequest is the optional request body of POST /api/pits
type CreatePitHTTPRequest struct {
	PitID string `json:"pitId,omitempty"`
}

// CreatePitResponse is the response for creating a pit
type CreatePitResponse struct {
	PitID string `json:"pitId"`
}

// ICEServer is the browser-facing shape of an RTCIceServer entry.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
