package handlers

import (
	"context"
	"net/http"
	"time"

	"leetee/internal/logger"
	"leetee/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const DeviceContextKey ContextKey = "device"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	csrf         *security.CSRFGenerator
	limiter      *security.RateLimiter
	deviceMaxAge time.Duration
	log          *logger.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(csrf *security.CSRFGenerator, limiter *security.RateLimiter, deviceMaxAge time.Duration, log *logger.Logger) *Middleware {
	return &Middleware{
		csrf:         csrf,
		limiter:      limiter,
		deviceMaxAge: deviceMaxAge,
		log:          logger.OrNop(log).With("component", "http"),
	}
}

// Device makes sure every request carries an anonymous device ID, issuing a
// new cookie when the browser has none or an unreadable one.
func (m *Middleware) Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := ""
		if cookie, err := r.Cookie(security.DeviceCookieName); err == nil && security.ValidDeviceID(cookie.Value) {
			device = cookie.Value
		}
		if device == "" {
			device = security.NewDeviceID()
			m.log.Debug("new device", "device", device, "ip", security.GetClientIP(r))
		}
		// Refresh the expiry on every visit.
		http.SetCookie(w, security.CreateDeviceCookie(r, device, m.deviceMaxAge))

		ctx := context.WithValue(r.Context(), DeviceContextKey, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFProtect rejects state-changing requests without a valid token in the
// form or the X-CSRF-Token header.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		token := r.Header.Get(CSRFHeaderName)
		if token == "" {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
			if err := r.ParseForm(); err != nil {
				respondWithError(m.log, w, http.StatusBadRequest, ErrInvalidFormData, "parse form failed", err)
				return
			}
			token = r.PostForm.Get(CSRFFormField)
		}

		device := GetDeviceFromContext(r.Context())
		if !m.csrf.ValidateToken(device, token) {
			m.log.Warn("csrf validation failed", "path", r.URL.Path, "device", device, "ip", security.GetClientIP(r))
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RateLimit throttles requests per client IP.
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.limiter.Allow(ip) {
			m.log.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, ErrTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// CSRFToken returns the token for the request's device.
func (m *Middleware) CSRFToken(r *http.Request) string {
	token, err := m.csrf.GenerateToken(GetDeviceFromContext(r.Context()))
	if err != nil {
		m.log.Error("generate csrf token failed", "error", err)
		return ""
	}
	return token
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Logging middleware logs HTTP requests
func Logging(log *logger.Logger, next http.Handler) http.Handler {
	log = logger.OrNop(log).With("component", "access")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		// Call next handler
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		)
	})
}

// GetDeviceFromContext retrieves the device ID from the request context
func GetDeviceFromContext(ctx context.Context) string {
	device, _ := ctx.Value(DeviceContextKey).(string)
	return device
}
