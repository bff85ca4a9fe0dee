package protocol

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// MessageID correlates a request with its reply. Server IDs are 32
// lowercase hex characters; device IDs are echoed back untouched.
type MessageID string

// NewMessageID returns a fresh random message ID.
func NewMessageID() MessageID {
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return MessageID(hex.EncodeToString(sum[:])[:32])
}

func (id MessageID) String() string { return string(id) }
