package domain

// Role is the bearer key role carried in the JWT "role" claim.
type Role string

const (
	RoleAnon        Role = "anon"
	RoleServiceRole Role = "service_role"
	RoleDriver      Role = "driver"
)

// Pagination carries paging params and totals.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// Normalize clamps page values into a usable range.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 || p.PageSize > 200 {
		p.PageSize = 50
	}
	return p
}

// RequestContext carries the authenticated caller when available.
type RequestContext struct {
	Role     Role   `json:"role"`
	Subject  string `json:"sub,omitempty"`
	DriverID string `json:"driverId,omitempty"`
}
