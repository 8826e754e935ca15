package identifier

import (
	"crypto/rand"
	"math/big"
)

// mrnBits sets the entropy of generated MRN values. 130 random bits
// rendered in radix 32 give a 26-character lowercase alphanumeric
// token; collisions are left to the store's unique constraint.
const mrnBits = 130

var mrnMax = new(big.Int).Lsh(big.NewInt(1), mrnBits)

// GenerateValue produces a new system-generated identifier value. It
// performs no uniqueness check. An unavailable randomness source is a
// process-level failure, so it panics rather than returning an error.
func GenerateValue() string {
	n, err := rand.Int(rand.Reader, mrnMax)
	if err != nil {
		panic("identifier: randomness source unavailable: " + err.Error())
	}
	return n.Text(32)
}
