package auth

// Known OAuth scopes used by the tracker API.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	// ScopeActivitiesAdmin marks supervisors and administrators. Holders may
	// act on any activity regardless of creator or assignee standing.
	ScopeActivitiesAdmin = "activities:admin"
)
