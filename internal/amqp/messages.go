package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moneymanager/internal/core"
)

// messageVersion is bumped whenever the LedgerMessage layout changes.
const messageVersion = 1

// LedgerMessage is the wire form of a core.LedgerEvent.
type LedgerMessage struct {
	core.LedgerEvent
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerMessage wraps ev for publishing.
func NewLedgerMessage(ev core.LedgerEvent) *LedgerMessage {
	return &LedgerMessage{
		LedgerEvent: ev,
		Version:     messageVersion,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes and checks a consumed message.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New("ledger message without type")
	}
	if msg.Version > messageVersion {
		return nil, fmt.Errorf("unsupported ledger message version %d", msg.Version)
	}
	return &msg, nil
}
