package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CSRFGenerator derives CSRF tokens from the device ID with HMAC-SHA256.
// No token state is stored server-side.
type CSRFGenerator struct {
	secret []byte
}

// NewCSRFGenerator creates a generator keyed by secret.
func NewCSRFGenerator(secret string) *CSRFGenerator {
	return &CSRFGenerator{secret: []byte(secret)}
}

// GenerateToken returns the CSRF token for a device.
func (g *CSRFGenerator) GenerateToken(deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("device ID is required")
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte("csrf:" + deviceID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// ValidateToken reports whether token is the valid CSRF token for deviceID.
func (g *CSRFGenerator) ValidateToken(deviceID, token string) bool {
	if deviceID == "" || token == "" {
		return false
	}
	expected, err := g.GenerateToken(deviceID)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(token))
}
