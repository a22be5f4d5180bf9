package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// accessKeyPrefix marks keys issued by this gateway.
const accessKeyPrefix = "sk-gw-"

// HashMasterKey returns the bcrypt hash of the master key.
func HashMasterKey(masterKey string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(masterKey), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("hash master key: %w", errHash)
	}
	return string(hash), nil
}

// CheckMasterKey reports whether the candidate matches the stored hash.
func CheckMasterKey(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// GenerateRandomString returns a hex string of the given byte length.
func GenerateRandomString(byteLen int) (string, error) {
	if byteLen <= 0 {
		return "", fmt.Errorf("invalid byte length: %d", byteLen)
	}
	buf := make([]byte, byteLen)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("read random bytes: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateAccessKey returns a new gateway access key value.
func GenerateAccessKey() (string, error) {
	token, errToken := GenerateRandomString(8)
	if errToken != nil {
		return "", errToken
	}
	return accessKeyPrefix + token, nil
}
