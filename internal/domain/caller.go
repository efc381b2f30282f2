package domain

// Caller is the identity/role pair threaded through every pipeline entry
// point. The permission gate decides on Role; audit entries record both.
type Caller struct {
	ID   string
	Role string
}
