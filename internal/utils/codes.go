package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const txnAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePickupCode returns a zero-padded numeric code of the given length.
func GeneratePickupCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate pickup code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// GenerateTxnID returns a gateway transaction id such as txn_k3j9x0a1qz.
func GenerateTxnID() string {
	var b strings.Builder
	b.WriteString("txn_")
	for i := 0; i < 10; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(txnAlphabet))))
		if err != nil {
			// fallback: time-based entropy
			n = big.NewInt(time.Now().UnixNano() % int64(len(txnAlphabet)))
		}
		b.WriteByte(txnAlphabet[n.Int64()])
	}
	return b.String()
}
