package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleVigil     UserRole = "VIGIL"
	RoleApprenant UserRole = "APPRENANT"
	RoleFormateur UserRole = "FORMATEUR"
)

// User is a row of the externally managed users table. Only APPRENANT users with a
// matricule take part in attendance tracking.
type User struct {
	ID          string   `db:"id" json:"id"`
	Matricule   *string  `db:"matricule" json:"matricule"`
	FirstName   string   `db:"first_name" json:"firstName"`
	LastName    string   `db:"last_name" json:"lastName"`
	Email       *string  `db:"email" json:"email,omitempty"`
	Role        UserRole `db:"role" json:"role"`
	Referentiel *string  `db:"referentiel" json:"referentiel,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// MatriculeValue returns the matricule or an empty string.
func (u User) MatriculeValue() string {
	if u.Matricule == nil {
		return ""
	}
	return *u.Matricule
}

// Tracked reports whether the user participates in attendance tracking.
func (u User) Tracked() bool {
	return u.Role == RoleApprenant && u.MatriculeValue() != ""
}

