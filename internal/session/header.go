package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// HeaderName carries the session id on REST requests.
const HeaderName = "Cart-Session"

// ParseHeader extracts the session id from a Cart-Session header.
// Format: id="<uuid>" (RFC 8941 Dictionary).
//
// Examples:
//   - id="0b6f..."           → 0b6f...
//   - id="0b6f...";v=1, x=2  → 0b6f... (params and other keys ignored)
//
// Returns error if header is empty, malformed, or missing the id key.
func ParseHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("empty Cart-Session header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return "", fmt.Errorf("invalid Cart-Session header: %w", err)
	}

	member, ok := dict.Get("id")
	if !ok {
		return "", errors.New("id key not found in Cart-Session header")
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", errors.New("id value must be an item")
	}

	id, ok := item.Value.(string)
	if !ok || id == "" {
		return "", errors.New("id value must be a non-empty string")
	}

	return id, nil
}

// FormatHeader renders a Cart-Session header value for the given id.
func FormatHeader(id string) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("id", httpsfv.NewItem(id))
	return httpsfv.Marshal(dict)
}
