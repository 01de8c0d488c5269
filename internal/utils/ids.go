package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateSecureID generates a secure random ID for receipts and call records
func GenerateSecureID(prefix string) string {
	// Generate a random 6-digit number
	max := big.NewInt(999999)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 999999)
	}

	// Use timestamp + random for uniqueness
	return fmt.Sprintf("%s%d%06d", prefix, time.Now().Unix(), n.Int64())
}
