package msgcache

import "github.com/google/uuid"

// Message is a daemon message awaiting delivery. Only the fields the cache
// needs are modeled here; the connection layer owns the full wire format.
type Message struct {
	ID      string
	Command string
	Service string
	Server  string
	Params  map[string]string
}

// NewMessage creates a message with a generated UUID.
func NewMessage(command, service, server string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Command: command,
		Service: service,
		Server:  server,
		Params:  make(map[string]string),
	}
}

// Param returns a named message parameter.
func (m *Message) Param(name string) (string, bool) {
	v, ok := m.Params[name]
	return v, ok
}

// SetParam sets a named message parameter and returns the message for
// chaining.
func (m *Message) SetParam(name, value string) *Message {
	m.Params[name] = value
	return m
}
