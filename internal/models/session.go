package models

import "time"

// UserIdentity is the authenticated user's profile, fetched once per
// session from /users/me and never re-derived from later responses.
type UserIdentity struct {
	Id        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

// FullName returns the display name for the identity.
func (u UserIdentity) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Session pairs the credential token with the confirmed identity.
// Both fields are always set; a partially authenticated session is
// never handed out.
type Session struct {
	Token     string
	User      UserIdentity
	ExpiresAt time.Time // zero when the token carries no usable expiry
}
