package reservation

import (
	"crypto/rand"
	"time"
)

const (
	codePrefix   = "PDK"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeSuffix   = 6
	// maxCodeAttempts bounds regeneration after a unique violation on kode_reservasi.
	maxCodeAttempts = 3
)

// Bytes at or above this bound are redrawn so every symbol is equally likely.
const codeByteLimit = 256 - 256%len(codeAlphabet)

// GenerateCode returns PDK-YYYYMMDD-XXXXXX for the booking instant.
func GenerateCode(now time.Time) (string, error) {
	suffix := make([]byte, 0, codeSuffix)
	buf := make([]byte, codeSuffix*2)
	for len(suffix) < codeSuffix {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		suffix = appendSymbols(suffix, buf)
	}
	return codePrefix + "-" + now.Format("20060102") + "-" + string(suffix), nil
}

func appendSymbols(dst, random []byte) []byte {
	for _, b := range random {
		if len(dst) == cap(dst) {
			break
		}
		if int(b) >= codeByteLimit {
			continue
		}
		dst = append(dst, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return dst
}
