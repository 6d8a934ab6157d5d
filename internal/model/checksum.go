package model

import (
	"fmt"
	"strings"
)

// Checksum computes the djb2 digest of data rendered as 8 lowercase hex
// digits: hash starts at 5381 and folds each byte as hash*33 + byte,
// truncated to 32 bits.
//
// djb2 catches truncation and accidental corruption. It is not a defence
// against deliberate tampering.
func Checksum(data []byte) string {
	var h uint32 = 5381
	for _, b := range data {
		h = (h << 5) + h + uint32(b)
	}
	return fmt.Sprintf("%08x", h)
}

// VerifyChecksum reports whether sum is the checksum of data.
func VerifyChecksum(data []byte, sum string) bool {
	return strings.EqualFold(strings.TrimSpace(sum), Checksum(data))
}
