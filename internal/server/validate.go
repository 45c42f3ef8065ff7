package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxNameLen = 100

var errBadID = errors.New("invalid id")

// pathID parses a URL parameter as a UUID. Every external identifier is
// validated before it reaches a lookup; nothing client-supplied is ever used
// to build a filesystem path.
func pathID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errBadID
	}
	return id, nil
}

// sanitizeName strips control characters, collapses whitespace runs, and
// bounds the length of a display name.
func sanitizeName(raw string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	name := strings.TrimSpace(b.String())
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimSpace(string(runes[:maxNameLen]))
	}
	return name
}

// intParam parses a numeric query parameter, falling back to def for absent
// or malformed values. Range clamping happens downstream.
func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
