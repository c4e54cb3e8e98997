package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultPinTTL = 5 * time.Minute

	pinMin   = 100000
	pinRange = 900000
)

type PIN struct {
	Value     string
	ExpiresAt time.Time
}

func (p PIN) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// generatePin draws a uniformly random six digit value.
func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+pinMin), nil
}
