package service

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Ticket codes look like #A1Z286: a hash tag, then letter digit letter and
// three digits. The space is only ~6.7M codes, far too small to be unique
// by construction; the mint loop checks the ledger and regenerates on
// collision, bounded by maxCodeAttempts.
const (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"

	// maxCodeAttempts bounds the generate-check-retry loop per ticket.
	// Hitting it means the code space is close to exhausted and needs
	// widening; that is a loud failure, never a silent retry-forever.
	maxCodeAttempts = 25
)

// ErrCodeSpaceExhausted is returned when a unique ticket code could not be
// found within maxCodeAttempts tries.
var ErrCodeSpaceExhausted = errors.New("ticket code space exhausted")

// NewTicketCode generates one candidate ticket code. Callers must verify
// uniqueness against the ledger before persisting.
func NewTicketCode() string {
	b := []byte{
		'#',
		pick(codeLetters),
		pick(codeDigits),
		pick(codeLetters),
		pick(codeDigits),
		pick(codeDigits),
		pick(codeDigits),
	}
	return string(b)
}

func pick(alphabet string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		panic("ticket code entropy: " + err.Error())
	}
	return alphabet[n.Int64()]
}
