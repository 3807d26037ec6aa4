package orch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/go-playground/validator/v10"
)

type MessageType string

const (
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeEndSession   MessageType = "end-session"
	TypePing         MessageType = "ping"

	TypeUserJoined   MessageType = "user-joined"
	TypeUserLeft     MessageType = "user-left"
	TypeSessionEnded MessageType = "session-ended"
	TypePong         MessageType = "pong"
)

var ErrMalformedMessage = errors.New("malformed message")

// PeerID accepts both JSON strings and numbers, since user ids are numeric
// in the accounts database and some clients send them unquoted.
type PeerID string

func (p *PeerID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PeerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("target_id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("target_id: %w", err)
	}
	*p = PeerID(n.String())
	return nil
}

// Inbound is a message received from a client. Offer, answer and candidate
// blobs are never inspected.
type Inbound struct {
	Type      MessageType     `json:"type" validate:"required,oneof=offer answer ice-candidate end-session ping"`
	Offer     json.RawMessage `json:"offer" validate:"required_if=Type offer"`
	Answer    json.RawMessage `json:"answer" validate:"required_if=Type answer"`
	Candidate json.RawMessage `json:"candidate" validate:"required_if=Type ice-candidate"`
	TargetID  PeerID          `json:"target_id" validate:"required_if=Type answer,max=64"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses and validates one inbound frame.
func Decode(data []byte) (*Inbound, error) {
	var m Inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if blob := m.blob(); blob != nil && isNull(blob) {
		return nil, fmt.Errorf("%w: null %s payload", ErrMalformedMessage, m.Type)
	}
	return &m, nil
}

func (m *Inbound) blob() json.RawMessage {
	switch m.Type {
	case TypeOffer:
		return m.Offer
	case TypeAnswer:
		return m.Answer
	case TypeICECandidate:
		return m.Candidate
	default:
		return nil
	}
}

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

type relayMessage struct {
	Type      MessageType     `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	SenderID  domain.UserID   `json:"sender_id"`
}

type userJoinedMessage struct {
	Type     MessageType   `json:"type"`
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
	Role     domain.Role   `json:"role"`
}

type userLeftMessage struct {
	Type   MessageType   `json:"type"`
	UserID domain.UserID `json:"user_id"`
}

type controlMessage struct {
	Type MessageType `json:"type"`
}

// relayFrame wraps m for delivery; sender is always the authenticated user,
// never a client-supplied field.
func relayFrame(m *Inbound, sender domain.UserID) (core.Frame, error) {
	out := relayMessage{Type: m.Type, SenderID: sender}
	switch m.Type {
	case TypeOffer:
		out.Offer = m.Offer
	case TypeAnswer:
		out.Answer = m.Answer
	case TypeICECandidate:
		out.Candidate = m.Candidate
	default:
		return nil, fmt.Errorf("%w: %s is not relayed", ErrMalformedMessage, m.Type)
	}
	return json.Marshal(out)
}

func userJoinedFrame(u domain.User) core.Frame {
	return mustMarshal(userJoinedMessage{Type: TypeUserJoined, UserID: u.ID, Username: u.Username, Role: u.Role})
}

func userLeftFrame(id domain.UserID) core.Frame {
	return mustMarshal(userLeftMessage{Type: TypeUserLeft, UserID: id})
}

func controlFrame(t MessageType) core.Frame {
	return mustMarshal(controlMessage{Type: t})
}

func mustMarshal(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("orch: marshal %T: %v", v, err))
	}
	return b
}
