package domain

// Principal is the authenticated caller identity supplied by the auth
// collaborator. The engine never parses credentials.
type Principal struct {
	UserID  int64
	IsAdmin bool
}
