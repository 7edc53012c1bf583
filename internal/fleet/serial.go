package fleet

import (
	"math/rand/v2"
	"strings"
)

const (
	serialAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	serialRandLength = 8

	// DefaultSerialPrefix is used by templates that declare none.
	DefaultSerialPrefix = "DEV"
)

// GenerateSerial returns prefix followed by eight random characters
// from [A-Z0-9], e.g. "LUZ7K2M9Q0A".
func GenerateSerial(prefix string, rng *rand.Rand) string {
	if prefix == "" {
		prefix = DefaultSerialPrefix
	}

	var b strings.Builder
	b.Grow(len(prefix) + serialRandLength)
	b.WriteString(prefix)
	for range serialRandLength {
		b.WriteByte(serialAlphabet[rng.IntN(len(serialAlphabet))])
	}
	return b.String()
}
