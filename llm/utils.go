package llm

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

func generateBatchID() string {
	timestamp := time.Now().Unix()
	randomBytes := make([]byte, 8)
	rand.Read(randomBytes)

	id := make([]byte, 12)
	binary.BigEndian.PutUint32(id[:4], uint32(timestamp))
	copy(id[4:], randomBytes)

	return hex.EncodeToString(id)
}

func isValidBatchID(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil && len(s) == 24
}

func EnsureBatchID(s string) string {
	if !isValidBatchID(s) {
		return generateBatchID()
	}
	return s
}

// statusError turns a provider HTTP status into a readable error.
func statusError(provider string, code int, detail string) error {
	switch {
	case code == 401:
		return fmt.Errorf("unauthorized: invalid %s API key", provider)
	case code == 429:
		return fmt.Errorf("rate limited by %s API", provider)
	case code >= 500:
		return fmt.Errorf("%s server error", provider)
	default:
		return fmt.Errorf("%s API error: %s", provider, detail)
	}
}
