package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// User mirrors an account in PostgreSQL when roles are kept there
// (ROLE_SOURCE=postgres) instead of in the users collection.
type User struct {
	gorm.Model
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"index"`
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	Role        string `json:"role" gorm:"size:16"`
}

// Identity is the authenticated caller attached to a request.
//
// SignedInAt and ExpiresAt come from the credential the caller presented.
// A later SignedInAt than the one a session last saw means the user signed
// in again.
type Identity struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	SignedInAt  time.Time `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// Authenticated reports whether the identity is resolved.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UID != ""
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}
