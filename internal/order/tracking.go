package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingLength   = 13
)

// NewTrackingCode generates the short human-shareable order identifier:
// 13 uppercase alphanumeric characters. With 36^13 possible codes the
// collision probability is treated as negligible, so there is no
// uniqueness check against the store.
func NewTrackingCode() (string, error) {
	max := big.NewInt(int64(len(trackingAlphabet)))
	code := make([]byte, trackingLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("order: failed to generate tracking code: %w", err)
		}
		code[i] = trackingAlphabet[n.Int64()]
	}
	return string(code), nil
}
