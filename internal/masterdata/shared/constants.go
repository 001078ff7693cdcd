package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"

	// Record statuses
	StatusActive   = "active"
	StatusInactive = "inactive"
)
