package tenantadmin

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// passkeyAlphabet avoids ambiguous characters (0/O, 1/l/I) since the
// passkey is delivered over email and typed by hand.
const passkeyAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// passkeyLength is long enough that online guessing is impractical
// even before rate limiting.
const passkeyLength = 16

// generatePasskey returns a new random setup passkey in plain text.
// Only the bcrypt hash of it is ever persisted.
func generatePasskey() (string, error) {
	buf := make([]byte, passkeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate passkey: %w", err)
	}
	for i, b := range buf {
		buf[i] = passkeyAlphabet[int(b)%len(passkeyAlphabet)]
	}
	return string(buf), nil
}

// hashPasskey derives the stored form of a passkey.
func hashPasskey(passkey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passkey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passkey: %w", err)
	}
	return string(hash), nil
}

// verifyPasskey reports whether the plain-text passkey matches the
// stored hash.
func verifyPasskey(hash, passkey string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passkey)) == nil
}
