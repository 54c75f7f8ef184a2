package models

// Group is an authorization class users belong to (many-to-many).
type Group struct {
	ID          int64
	Name        string
	Description string
}

// Well-known groups seeded by the initial migration.
const (
	GroupUsers          = "users"
	GroupManagers       = "managers"
	GroupAdministrators = "administrators"
)
