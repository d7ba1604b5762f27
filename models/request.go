package models

import "strings"

// RunRequest is the payload for POST /run-scrape.
type RunRequest struct {
	// Email is the portal login, typed as given into the username field.
	// Only needed when the sign-in form asks for a username; a remembered
	// profile may show a password-only form.
	Email string `json:"email"`

	// Password is the portal password. Not needed when the persistent
	// profile is still logged in.
	Password string `json:"password"`

	// Number is the webhook URL that receives the scraped records.
	// The field name is kept for compatibility with existing callers.
	// Checked by the handler after Defaults trims it.
	Number string `json:"number" binding:"required"`
}

// Defaults normalises user input.
func (r *RunRequest) Defaults() {
	r.Email = strings.TrimSpace(r.Email)
	r.Number = strings.TrimSpace(r.Number)
}

// Credentials extracts the login details.
func (r *RunRequest) Credentials() Credentials {
	return Credentials{Email: r.Email, Password: r.Password}
}
