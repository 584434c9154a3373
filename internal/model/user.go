package model

import "time"

// Roles recognised by the service.  ADMIN may manage the show catalog
// and cancel any reservation; CUSTOMER may only act on their own data.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the `users`
// table.  The password is never stored in plain form; only a bcrypt
// hash is persisted.
//
// Fields:
//  ID           – primary key identifier of the user.
//  FirstName    – given name, shown on the profile page.
//  LastName     – family name.
//  Email        – unique email address, normalised to lower case.
//  Phone        – optional contact number.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or CUSTOMER.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Email        string    // users.email
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
