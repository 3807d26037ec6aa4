// Package rtc holds the WebRTC settings handed to clients. Media flows peer
// to peer; the server only tells browsers which STUN/TURN servers to use.
package rtc

import (
	"errors"
	"fmt"

	"github.com/edustream/liveclass/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

var ErrTURNCredentials = errors.New("turn server requires username and credential")

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewWebRTCConfig validates the configured servers; an empty list yields
// the default public STUN server.
func NewWebRTCConfig(servers []config.ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return webrtc.Configuration{}, fmt.Errorf("ice server %d: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return webrtc.Configuration{}, fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
			isTURN := u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS
			if isTURN && (s.Username == "" || s.Credential == "") {
				return webrtc.Configuration{}, fmt.Errorf("ice server %d: %q: %w", i, raw, ErrTURNCredentials)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out, nil
}
