package models

import "time"

// Identity is the allow-list plus profile aggregate for one email. It is
// keyed on the normalized email and is never hard-deleted: removal flows
// only strip roles. Profile fields populate lazily once a durable account
// materialises or an import supplies them.
type Identity struct {
	Email     string    `db:"email" json:"email"`
	Roles     RoleSet   `db:"roles" json:"roles"`
	FirstName string    `db:"first_name" json:"first_name,omitempty"`
	LastName  string    `db:"last_name" json:"last_name,omitempty"`
	DNI       string    `db:"dni" json:"dni,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	BirthDate string    `db:"birth_date" json:"birth_date,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Profile carries the optional demographic fields supplied alongside an
// enrollment. Empty fields never overwrite stored values.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
}

// Empty reports whether the profile carries no data at all.
func (p Profile) Empty() bool {
	return p.FirstName == "" && p.LastName == "" && p.DNI == "" && p.Phone == "" && p.BirthDate == ""
}

// Account is the durable record held by the external identity provider.
type Account struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
