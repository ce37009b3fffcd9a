package models

import "github.com/golang-jwt/jwt/v5"

// Role represents the capability level asserted by the identity provider.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOrganizer Role = "ORGANIZER"
	RoleMember    Role = "MEMBER"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller handed to core operations.
type Actor struct {
	UserID string
	Role   Role
}

// IsOrganizer reports whether the actor may perform privileged event operations.
func (a Actor) IsOrganizer() bool {
	return a.Role == RoleOrganizer || a.Role == RoleAdmin
}

// ActorFromClaims converts validated claims into an Actor.
func ActorFromClaims(claims *JWTClaims) (Actor, bool) {
	if claims == nil || claims.UserID == "" {
		return Actor{}, false
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}, true
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
