package domain

// Staff roles. Role names double as the values stored on disk and carried
// in session claims.
const (
	RoleAdmin      = "Admin"
	RoleManager    = "Manager"
	RolePharmacist = "Pharmacist"
	RolePharmTech  = "Pharmacist Technician"
	RoleCashier    = "Cashier"
)

// ValidRole reports whether s is one of the known staff roles.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleManager, RolePharmacist, RolePharmTech, RoleCashier:
		return true
	}
	return false
}

// StaffAccount is a login-capable staff record. Password holds a bcrypt
// hash and is blanked before the record leaves the API.
type StaffAccount struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	FailedAttempts int    `json:"failed_attempts"`
	Locked         bool   `json:"locked"`
	FirstTimeLogin bool   `json:"first_time_login"`
}

func (a StaffAccount) RecordID() string { return a.ID }
