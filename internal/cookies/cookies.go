// Package cookies moves client state in and out of HTTP cookies. Every
// cookie it writes is Path=/, Secure and HttpOnly; values read back are
// untrusted until ParseSignupState (or a token check) accepts them.
package cookies

import (
	"errors"
	"net/http"
	"time"

	"commentboard/internal/sterilize"
)

const (
	Username     = "Username"
	AttemptEmail = "AttemptEmail"
	ConfirmNonce = "ConfirmNonce"
	AccessToken  = "AccessToken"
)

// Signup lists the cookies that carry a pending confirmation.
var Signup = []string{Username, AttemptEmail, ConfirmNonce}

var (
	ErrMissing  = errors.New("signup cookies missing")
	ErrTampered = errors.New("signup cookies tampered")
)

// Decode returns the named cookie values. ok is false when any of them is absent.
func Decode(r *http.Request, names ...string) (map[string]string, bool) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		c, err := r.Cookie(name)
		if err != nil {
			return out, false
		}
		out[name] = c.Value
	}
	return out, true
}

func Set(w http.ResponseWriter, name, value string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		Clear(w, name)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear resends each cookie empty with an epoch expiry and Max-Age=0.
func Clear(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SignupState is the sterilized content of the three signup cookies.
type SignupState struct {
	Name        string
	Email       string
	PublicNonce string
}

// ParseSignupState validates raw cookie values. Each value must be
// identical to its sterilized form, otherwise ErrTampered.
func ParseSignupState(raw map[string]string) (SignupState, error) {
	name, okName := raw[Username]
	email, okEmail := raw[AttemptEmail]
	nonce, okNonce := raw[ConfirmNonce]
	if !okName || !okEmail || !okNonce {
		return SignupState{}, ErrMissing
	}
	st := SignupState{
		Name:        sterilize.Name(name),
		Email:       sterilize.Email(email),
		PublicNonce: sterilize.PublicNonce(nonce),
	}
	if !sterilize.Accept(name, st.Name) ||
		!sterilize.Accept(email, st.Email) ||
		!sterilize.Accept(nonce, st.PublicNonce) {
		return SignupState{}, ErrTampered
	}
	return st, nil
}
