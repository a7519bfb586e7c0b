package entity

const RoleAdmin = "admin"

// Principal is the identity the token verifier binds to a connection or
// request for the lifetime of the session. Token issuance belongs to the
// platform's auth service; this core only consumes verified claims.
type Principal struct {
	UserId string `json:"userId"`
	Role   string `json:"role"`
}

// Elevated reports whether the principal may read other users' data.
func (p *Principal) Elevated() bool {
	return p != nil && p.Role == RoleAdmin
}

// CanActFor reports whether the principal may access resources owned by
// userId.
func (p *Principal) CanActFor(userId string) bool {
	if p == nil {
		return false
	}
	return p.UserId == userId || p.Elevated()
}
