package handlers

const (
	CSRFFormField  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"

	ErrInvalidFormData     = "Invalid form data"
	ErrForbidden           = "Invalid or missing CSRF token"
	ErrTooManyRequests     = "Too many requests, slow down a little"
	ErrInternalServerError = "Internal server error"
	ErrNotFound            = "Not found"

	maxFormBytes = 64 << 10
)
