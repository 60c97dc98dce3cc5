package model

// Role is the resolved authorization level of the acting agent. It is
// resolved once per request by the external auth layer, never re-derived
// from ad hoc identity checks inside the pipeline.
type Role string

// Agent roles.
const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
)

// Session is the trusted request context produced by the external auth
// component. The pipeline trusts it completely: société and cabinet scoping
// always come from here, never from client-supplied input.
type Session struct {
	AgentID   int64
	CabinetID int64
	SocieteID int64
	Username  string
	Role      Role
}
