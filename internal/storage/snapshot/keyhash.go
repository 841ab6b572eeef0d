package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyHash returns the hex sha256 of the canonical JSON form of key. Map keys
// are sorted at every depth, so equal keys hash equally regardless of how
// they were built.
func KeyHash(key any) (string, error) {
	canon, err := canonicalJSON(key)
	if err != nil {
		return "", fmt.Errorf("snapshot: hash key: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	// Round trip through a generic value so struct keys are sorted too.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
