package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewReference produces the opaque correlation string tying a checkout
// session to the webhook that later confirms it. The timestamp segment is
// for human auditing; the 8 random bytes carry the uniqueness. The
// reference column's unique index is the actual guarantee, not this
// function.
func NewReference() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("reference entropy: %v", err))
	}
	return fmt.Sprintf("RF-%s-%s", time.Now().UTC().Format("20060102150405"), hex.EncodeToString(buf))
}
