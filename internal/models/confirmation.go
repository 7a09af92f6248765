package models

import "time"

// ECode is the one-time numeric code emailed to prove ownership of an address.
type ECode struct {
	ID        int64     `json:"id"`
	LoginID   int64     `json:"login_id"`
	Code      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Nonce is the server-held secret bound to an ECode. Only its hash
// (the public nonce) is ever sent to the client.
type Nonce struct {
	ECodeID    int64     `json:"ecode_id"`
	SecretCode string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PendingConfirmation is the ECode ⋈ Nonce ⋈ Login row for an unconfirmed signup.
type PendingConfirmation struct {
	LoginID        int64
	LoginName      string
	LoginEmail     string
	ECodeID        int64
	NonceSecret    string
	NonceExpiresAt time.Time
}

type ConfirmEmailRequest struct {
	ECode string `json:"ecode"`
}
