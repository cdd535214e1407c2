package dto

// CreateDepartmentRequest registers a new office.
type CreateDepartmentRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Kind     string `json:"kind" validate:"required"`
	ParentID string `json:"parent_id,omitempty"`
}

// CreateUserRequest registers a new account.
type CreateUserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"full_name" validate:"required"`
	Role         string `json:"role" validate:"required"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// ReassignUserRequest moves a user to another department.
type ReassignUserRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	DepartmentID string `json:"department_id" validate:"required"`
}
