package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

const envelopeVersion = 1

type envelope struct {
	Version int             `json:"v"`
	Sum     string          `json:"sum"`
	Body    json.RawMessage `json:"body"`
}

func seal(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	sum := blake3.Sum256(body)
	return json.Marshal(envelope{
		Version: envelopeVersion,
		Sum:     hex.EncodeToString(sum[:]),
		Body:    body,
	})
}

// open verifies the envelope checksum before decoding into v.
func open(raw []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != envelopeVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
	}
	sum := blake3.Sum256(env.Body)
	if hex.EncodeToString(sum[:]) != env.Sum {
		return ErrCorrupt
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
