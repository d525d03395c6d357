package shared

// Role enumerates the access levels known to the application.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

// CanPost reports whether the role may create and post documents.
func (r Role) CanPost() bool {
	return r == RoleAdmin || r == RoleUser
}

// CanVoid reports whether the role may void posted documents. Void is
// restricted to admins and is re-checked server side on every call.
func (r Role) CanVoid() bool {
	return r == RoleAdmin
}

// CanClosePeriod reports whether the role may close or reopen periods.
func (r Role) CanClosePeriod() bool {
	return r == RoleAdmin
}
