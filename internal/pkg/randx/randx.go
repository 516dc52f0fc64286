/*
Package randx provides functions for generating unique identifiers.

Room identifiers are random UUID v4 strings; connection identifiers are short Base62
strings used only to correlate log lines for a single socket.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// ConnIDLength is the fixed length of a generated connection identifier.
	ConnIDLength = 8

	// MaxRoomIDLength bounds client-supplied room identifiers on the signaling path.
	MaxRoomIDLength = 128
)

// RoomID generates a new random room identifier (UUID v4).
// It returns an error instead of panicking when the system random source fails.
func RoomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate room id: %w", err)
	}
	return id.String(), nil
}

// ConnID generates a Base62 connection identifier using crypto/rand.
// On failure of the random source it falls back to a UUID-derived prefix.
func ConnID() string {
	result := make([]byte, ConnIDLength)

	for i := 0; i < ConnIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return uuid.NewString()[:ConnIDLength]
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result)
}

// IsValidRoomID reports whether id can be used as a room identifier on the signaling path.
// Room identifiers are opaque; only emptiness and length are checked.
func IsValidRoomID(id string) bool {
	return id != "" && len(id) <= MaxRoomIDLength
}
