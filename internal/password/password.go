package password

import (
	"crypto/rand"
	"math"
	"math/big"
)

const (
	// MinLen is the shortest password Generate will produce. Shorter requests are raised to it.
	MinLen = 8
	// DisableLen is the length used when scrambling the password of a disabled account.
	DisableLen = 32
	// ResetLen is the length used for operator initiated password resets.
	ResetLen = 12
)

// character classes; AD complexity requires three of four, Generate always includes all four.
var (
	lower   = []byte("abcdefghijkmnopqrstuvwxyz")
	upper   = []byte("ABCDEFGHJKLMNPQRSTUVWXYZ")
	digits  = []byte("23456789")
	symbols = []byte("!#%+-=?@_")
	all     = concat(lower, upper, digits, symbols)
)

func concat(sets ...[]byte) []byte {
	var out []byte
	for _, s := range sets {
		out = append(out, s...)
	}

	return out
}

// Generate returns a random password of the given length containing at least one lower case
// letter, one upper case letter, one digit and one symbol.
func Generate(length int) string {
	if length < MinLen {
		length = MinLen
	}

	out := randomChars(length-4, all)
	out = append(out, randomChars(1, lower)...)
	out = append(out, randomChars(1, upper)...)
	out = append(out, randomChars(1, digits)...)
	out = append(out, randomChars(1, symbols)...)

	shuffle(out)

	return string(out)
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic("password: error reading random bytes: " + err.Error())
		}

		j := int(n.Int64())
		b[i], b[j] = b[j], b[i]
	}
}

const (
	// maxBufLen is the maximum length of a temporary buffer for random bytes.
	maxBufLen = 2048

	// minRegenBufLen is the minimum number of bytes requested after the first read fell short.
	minRegenBufLen = 16

	maxByteValue = 255
	byteRange    = 256
)

// estimatedBufLen returns the number of random bytes to request when values above maxByte are rejected.
func estimatedBufLen(need, maxByte int) int {
	return int(math.Ceil(float64(need) * (maxByteValue / float64(maxByte))))
}

// randomChars returns length characters drawn uniformly from chars.
// Bytes above the largest multiple of len(chars) are rejected to avoid modulo bias.
func randomChars(length int, chars []byte) []byte {
	if length <= 0 {
		return nil
	}

	clen := len(chars)
	if clen < 2 || clen > byteRange {
		panic("password: wrong charset length")
	}

	maxRb := maxByteValue - (byteRange % clen)
	bufLen := min(max(estimatedBufLen(length, maxRb), length), maxBufLen)

	buf := make([]byte, bufLen)
	out := make([]byte, 0, length)

	for {
		if _, err := rand.Read(buf[:bufLen]); err != nil {
			panic("password: error reading random bytes: " + err.Error())
		}

		for _, rb := range buf[:bufLen] {
			c := int(rb)
			if c > maxRb {
				continue
			}

			out = append(out, chars[c%clen])
			if len(out) == length {
				return out
			}
		}

		bufLen = estimatedBufLen(length-len(out), maxRb)
		if bufLen < minRegenBufLen && minRegenBufLen < cap(buf) {
			bufLen = minRegenBufLen
		}

		bufLen = min(bufLen, maxBufLen)
	}
}
