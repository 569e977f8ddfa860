package identity

type Role string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Principal is the already-resolved caller. Resolution (ticket or bearer
// validation) happens before control-plane code runs; only ID is referenced
// by control-plane rows.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Status   Status `json:"status"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) Active() bool {
	return p != nil && p.Status == StatusActive
}
