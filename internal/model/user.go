package model

import "time"

// Role names stored in users.role.
const (
	RoleAdmin      = "ADMIN"
	RoleTechnician = "TECHNICIAN"
	RoleStudent    = "STUDENT"
)

// User represents an application user record as stored in the
// `users` table.  PasswordHash is always a bcrypt digest; the
// service never stores a plain-text credential.  EmailVerified is
// flipped after a successful OTP verification with the
// `registration` purpose.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Name          – display name.
//  Email         – unique, lowercased email address.
//  PasswordHash  – bcrypt hashed password.
//  Role          – role name (ADMIN, TECHNICIAN or STUDENT).
//  EmailVerified – whether the email was confirmed via OTP.
//  IsActive      – whether the account is active.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Name          string    // users.name
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	Role          string    // users.role
	EmailVerified bool      // users.email_verified
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}
