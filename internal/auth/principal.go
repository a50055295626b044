package auth

// Principal adapts a claim set to the identity facts the domain needs: the
// subject and a single elevated-authority capability. Role names never cross
// this boundary.
type Principal struct {
	claims *Claims
}

// NewPrincipal wraps claims as a domain principal.
func NewPrincipal(claims *Claims) Principal {
	return Principal{claims: claims}
}

// ID returns the authenticated subject.
func (p Principal) ID() string {
	if p.claims == nil {
		return ""
	}
	return p.claims.Subject
}

// HasElevatedAuthority reports whether the subject may act on any activity.
func (p Principal) HasElevatedAuthority() bool {
	return p.claims.HasScope(ScopeActivitiesAdmin)
}
