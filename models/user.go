package models

import (
	"strings"
	"time"
)

type (
	// User is the identity record of an account holder.
	User struct {
		Id                     int64      `json:"id" bson:"_id"`
		Email                  string     `json:"email" bson:"email"`
		FirstName              string     `json:"firstName,omitempty" bson:"firstName,omitempty"`
		LastName               string     `json:"lastName,omitempty" bson:"lastName,omitempty"`
		DateRegistered         time.Time  `json:"dateRegistered" bson:"dateRegistered"`
		EmailVerifiedAt        *time.Time `json:"emailVerifiedAt,omitempty" bson:"emailVerifiedAt,omitempty"`
		VersionOfTermsAccepted *time.Time `json:"versionOfTermsAccepted,omitempty" bson:"versionOfTermsAccepted,omitempty"`
	}

	//password credential owned by a single user
	UserCredential struct {
		Id       int64  `json:"id" bson:"_id"`
		UserId   int64  `json:"userId" bson:"userId"`
		Password string `json:"-" bson:"password"`
	}

	UserRole struct {
		Id     int64 `json:"id" bson:"_id"`
		UserId int64 `json:"userId" bson:"userId"`
		RoleId Role  `json:"roleId" bson:"roleId"`
	}
)

// NormalizeEmail is the form under which emails are stored and compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName joins the first and last name, skipping whichever is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) MarkVerified(at time.Time) {
	u.EmailVerifiedAt = &at
}

// HasRole reports whether any of the grants is for the given role.
func HasRole(roles []*UserRole, role Role) bool {
	for _, r := range roles {
		if r.RoleId == role {
			return true
		}
	}
	return false
}
