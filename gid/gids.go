package gid

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	ConnectionTag = "cxn"
	SessionTag    = "ses"
)

type tagToIDConstructor func(uuid.UUID) ID

var idConstructorMap = map[string]tagToIDConstructor{
	ConnectionTag: func(id uuid.UUID) ID { return NewConnectionID(id) },
	SessionTag:    func(id uuid.UUID) ID { return NewSessionID(id) },
}

func parseIDParts(str string) (string, uuid.UUID, error) {
	parts := strings.Split(str, "_")
	if len(parts) != 2 {
		return "", uuid.Nil, errors.New("invalid GID structure")
	}
	idPart, err := decodeUUID(parts[1])
	if err != nil {
		return "", uuid.Nil, errors.Wrap(err, "invalid unique id part of GID")
	}
	return parts[0], idPart, nil
}

func ParseID(str string) (ID, error) {
	tagName, uniquePart, err := parseIDParts(str)
	if err != nil {
		return nil, err
	}

	constructor := idConstructorMap[tagName]
	if constructor == nil {
		return nil, errors.Errorf("no known gid for tag %s", tagName)
	}

	return constructor(uniquePart), nil
}

func ParseIDAs(str string, destID interface{}) error {
	id, err := ParseID(str)
	if err != nil {
		return errors.Wrapf(err, "parse ID failed: %s", str)
	}
	return assignTo(id, destID)
}

// ConnectionID identifies one accepted proxy connection (the client-facing
// socket and its paired server-facing socket) for the connection's lifetime.
// It supplements, but never replaces, the literal client_ip:client_port
// recorded in trace rows.
type ConnectionID struct {
	baseID
}

func (ConnectionID) GetType() string {
	return ConnectionTag
}

func (id ConnectionID) String() string {
	return String(id)
}

func NewConnectionID(id uuid.UUID) ConnectionID {
	return ConnectionID{baseID(id)}
}

func GenerateConnectionID() ConnectionID {
	return NewConnectionID(uuid.New())
}

func (id ConnectionID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *ConnectionID) UnmarshalText(data []byte) error {
	return fromText(id, data)
}

// SessionID identifies one client-side NMF session, from Open through the
// matching Close.
type SessionID struct {
	baseID
}

func (SessionID) GetType() string {
	return SessionTag
}

func (id SessionID) String() string {
	return String(id)
}

func NewSessionID(id uuid.UUID) SessionID {
	return SessionID{baseID(id)}
}

func GenerateSessionID() SessionID {
	return NewSessionID(uuid.New())
}

func (id SessionID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *SessionID) UnmarshalText(data []byte) error {
	return fromText(id, data)
}
