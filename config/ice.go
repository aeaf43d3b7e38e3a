package config

import (
	"errors"
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// ICEServers returns the configured STUN and TURN servers, validated.
func (c *Config) ICEServers() ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	if len(c.ICE.STUNURLs) > 0 {
		server := webrtc.ICEServer{URLs: c.ICE.STUNURLs}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("ice.stun_urls: %w", err)
		}
		servers = append(servers, server)
	}

	if len(c.ICE.TURNURLs) > 0 {
		if c.ICE.TURNUsername == "" || c.ICE.TURNCredential == "" {
			return nil, errors.New("ice.turn_username and ice.turn_credential must be set with ice.turn_urls")
		}
		server := webrtc.ICEServer{
			URLs:       c.ICE.TURNURLs,
			Username:   c.ICE.TURNUsername,
			Credential: c.ICE.TURNCredential,
		}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("ice.turn_urls: %w", err)
		}
		servers = append(servers, server)
	}

	return servers, nil
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}
	for _, raw := range server.URLs {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		if uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS {
			cred, _ := server.Credential.(string)
			if server.Username == "" || cred == "" {
				return fmt.Errorf("%q: turn urls require username and credential", raw)
			}
		}
	}
	return nil
}
