package domain

import "strings"

// CorrelationPrefix keeps message timestamps textual wherever they are stored.
const CorrelationPrefix = "msgId:"

// CorrelationID identifies a posted chat message in the ledger. It wraps the
// message timestamp exactly as the platform sent it; the timestamp must never
// be converted to a number, since "1712345678.000100" does not survive a
// float round trip.
type CorrelationID string

// NewCorrelationID builds the ledger key for a raw message timestamp.
func NewCorrelationID(messageTS string) CorrelationID {
	return CorrelationID(CorrelationPrefix + strings.TrimSpace(messageTS))
}

// MessageTS returns the raw message timestamp.
func (c CorrelationID) MessageTS() string {
	return strings.TrimPrefix(string(c), CorrelationPrefix)
}

func (c CorrelationID) String() string { return string(c) }

// IsZero reports whether no timestamp is carried.
func (c CorrelationID) IsZero() bool {
	return c.MessageTS() == ""
}
