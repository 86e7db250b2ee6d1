package types

import (
	"strings"
	"time"
)

// User is a traveler. UserID and Email are fixed at creation; the profile
// fields may be edited through UpdateUserProfile.
type User struct {
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Profile           string    `json:"profile,omitempty"`
	TravelPreferences string    `json:"travel_preferences,omitempty"`
	TravelConstraints string    `json:"travel_constraints,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UserProfilePatch carries the mutable user fields. Nil fields are left
// untouched.
type UserProfilePatch struct {
	Name              *string `json:"name,omitempty"`
	Profile           *string `json:"profile,omitempty"`
	TravelPreferences *string `json:"travel_preferences,omitempty"`
	TravelConstraints *string `json:"travel_constraints,omitempty"`
}

// Apply copies the non-nil patch fields onto u.
func (p UserProfilePatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Profile != nil {
		u.Profile = *p.Profile
	}
	if p.TravelPreferences != nil {
		u.TravelPreferences = *p.TravelPreferences
	}
	if p.TravelConstraints != nil {
		u.TravelConstraints = *p.TravelConstraints
	}
}

// Validate checks the user's field invariants. Uniqueness of Email is
// enforced by the store.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalid("user", "name", "required", nil)
	}
	if !ValidEmail(u.Email) {
		return invalid("user", "email", "email shape", u.Email)
	}
	return nil
}

// ValidEmail reports whether s has the basic shape local@domain.tld with no
// whitespace.
func ValidEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || strings.Count(s, "@") != 1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
