package relay

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ProtocolVersion is the handshake version both sides must agree on.
const ProtocolVersion = "1"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
)

var (
	// ErrProtocolVersion is returned when a peer speaks another protocol version.
	ErrProtocolVersion = errors.New("protocol version mismatch")
	// ErrConfigMismatch is returned when a peer's world contract digest differs.
	ErrConfigMismatch = errors.New("world config mismatch")
	// ErrInvalidMessage is returned for handshake messages failing the schema.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrRejected is returned by Dial when the server closes the handshake.
	ErrRejected = errors.New("rejected by relay")
)

// Hello is the first message a client sends.
type Hello struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	ConfigDigest    string `json:"config_digest,omitempty"`
}

// Welcome is the server's reply to a valid Hello. Backlog edits follow it
// as binary frames before any live traffic.
type Welcome struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PeerID          string `json:"peer_id"`
	Seed            int64  `json:"seed"`
	ConfigDigest    string `json:"config_digest"`
	Backlog         int    `json:"backlog"`
}

var (
	//go:embed schemas/hello.schema.json
	helloSchemaJSON string
	//go:embed schemas/welcome.schema.json
	welcomeSchemaJSON string

	helloSchema   = jsonschema.MustCompileString("hello.schema.json", helloSchemaJSON)
	welcomeSchema = jsonschema.MustCompileString("welcome.schema.json", welcomeSchemaJSON)
)

// decodeHello validates msg against the HELLO schema and checks its version.
func decodeHello(msg []byte) (Hello, error) {
	var h Hello
	if err := validate(helloSchema, msg); err != nil {
		return h, err
	}
	if err := json.Unmarshal(msg, &h); err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if h.ProtocolVersion != ProtocolVersion {
		return h, fmt.Errorf("%w: got %q, want %q", ErrProtocolVersion, h.ProtocolVersion, ProtocolVersion)
	}
	return h, nil
}

func decodeWelcome(msg []byte) (Welcome, error) {
	var w Welcome
	if err := validate(welcomeSchema, msg); err != nil {
		return w, err
	}
	if err := json.Unmarshal(msg, &w); err != nil {
		return w, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if w.ProtocolVersion != ProtocolVersion {
		return w, fmt.Errorf("%w: got %q, want %q", ErrProtocolVersion, w.ProtocolVersion, ProtocolVersion)
	}
	return w, nil
}

func validate(s *jsonschema.Schema, msg []byte) error {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}
