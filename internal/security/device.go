package security

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DeviceCookieName identifies the browser whose progress is being tracked.
const DeviceCookieName = "leetee_device"

// NewDeviceID creates a random device identifier.
func NewDeviceID() string {
	return uuid.New().String()
}

// ValidDeviceID reports whether id looks like an identifier we issued.
func ValidDeviceID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsSecureRequest determines if the request is over HTTPS, directly or
// behind a reverse proxy.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return true
	}
	return r.URL.Scheme == "https"
}

// CreateDeviceCookie creates the long-lived device cookie. The Secure flag
// follows the request scheme.
func CreateDeviceCookie(r *http.Request, deviceID string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     DeviceCookieName,
		Value:    deviceID,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// CreateDeleteCookie expires the device cookie.
func CreateDeleteCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     DeviceCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
	}
}

// HashPIN hashes a caregiver PIN for the RESET_PIN_HASH setting.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPIN reports whether pin matches hash. An empty hash means no PIN is
// configured and every PIN is accepted.
func CheckPIN(hash, pin string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
