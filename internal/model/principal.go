package model

import "github.com/google/uuid"

// Principal is the authenticated caller as asserted by the outer
// application's access token.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "ADMIN"
}

func (p Principal) IsClient() bool {
	return p.Role == "CLIENT"
}
