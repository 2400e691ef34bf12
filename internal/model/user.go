package model

import "time"

// User represents a staff account as stored in the `users` table. Staff
// accounts authenticate the clerks and managers who open and close rentals;
// customers themselves do not log in.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – CLERK or MANAGER.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

// Staff roles.
const (
	RoleClerk   = "CLERK"
	RoleManager = "MANAGER"
)
