package session

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the session record; the id is the store key and is not part of it
func Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Decode restores a session record stored under id
func Decode(id string, data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.ID = id
	return &s, nil
}
