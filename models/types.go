package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole is the access level of an employee.
type UserRole string

const (
	UserRoleADMIN UserRole = "ADMIN"
	UserRoleBASIC UserRole = "BASIC"
)

// User is an employee account. Remarks copy Username and EmpNo at write time.
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username          string             `bson:"username" json:"username"`
	Email             string             `bson:"email" json:"email"`
	EmpNo             string             `bson:"empNo" json:"empNo"`
	Password          string             `bson:"password" json:"-"`
	UserType          string             `bson:"userType" json:"userType"`
	Role              UserRole           `bson:"role" json:"role"`
	Contact           string             `bson:"contact" json:"contact"`
	AltContact        string             `bson:"altContact,omitempty" json:"altContact,omitempty"`
	Address           string             `bson:"address" json:"address"`
	City              string             `bson:"city" json:"city"`
	GovtID            string             `bson:"govtID" json:"govtID"`
	ReportingManager  string             `bson:"reportingManager" json:"reportingManager"`
	ReferenceEmployee string             `bson:"referenceEmployee,omitempty" json:"referenceEmployee,omitempty"`
	Restricted        bool               `bson:"restricted" json:"restricted"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ActingUser is the session principal handed explicitly to ledger operations.
type ActingUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	EmpNo    string   `json:"empNo"`
	UserType string   `json:"userType"`
	Role     UserRole `json:"role"`
}

// IsAdmin reports whether the session belongs to an administrator.
func (u *ActingUser) IsAdmin() bool {
	return u != nil && u.Role == UserRoleADMIN
}

type (
	// LoginRequest is the credential sign-in payload.
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// LoginResponse carries the signed session token.
	LoginResponse struct {
		Token string     `json:"token"`
		User  ActingUser `json:"user"`
	}

	// NewEmployeeRequest is submitted by an administrator to register an employee.
	NewEmployeeRequest struct {
		Username          string   `json:"username" validate:"required,max=100"`
		Email             string   `json:"email" validate:"required,email"`
		Password          string   `json:"password" validate:"required,min=6,max=72"`
		UserType          string   `json:"userType" validate:"required,max=100"`
		Contact           string   `json:"contact" validate:"required,len=10,numeric"`
		AltContact        string   `json:"altContact" validate:"omitempty,len=10,numeric"`
		Address           string   `json:"address" validate:"required,max=100"`
		City              string   `json:"city" validate:"required,max=100"`
		GovtID            string   `json:"govtID" validate:"required,len=12"`
		ReportingManager  string   `json:"reportingManager" validate:"required,max=100"`
		Role              UserRole `json:"role" validate:"required,oneof=ADMIN BASIC"`
		ReferenceEmployee string   `json:"referenceEmployee" validate:"omitempty,min=4,max=100"`
	}
)
