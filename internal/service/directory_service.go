package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

type directoryDepartmentRepository interface {
	Create(ctx context.Context, department *models.Department) error
	GetByID(ctx context.Context, id string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type directoryUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]models.User, error)
	UpdateDepartment(ctx context.Context, userID, departmentID string) error
	CountOpenDocumentsHeldBy(ctx context.Context, userID string) (int, error)
	CountPendingTransfersAuthoredBy(ctx context.Context, userID string) (int, error)
}

// DirectoryService manages the department and user master records that
// routing validates against.
type DirectoryService struct {
	departments directoryDepartmentRepository
	users       directoryUserRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(
	departments directoryDepartmentRepository,
	users directoryUserRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *DirectoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{departments: departments, users: users, validator: validate, logger: logger}
}

func validDepartmentKind(kind models.DepartmentKind) bool {
	switch kind {
	case models.DepartmentKindDepartment, models.DepartmentKindDistrict, models.DepartmentKindSchool:
		return true
	}
	return false
}

func validUserRole(role models.UserRole) bool {
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleRecordsOfficer, models.RoleViewer:
		return true
	}
	return false
}

// CreateDepartment registers a new routable office.
func (s *DirectoryService) CreateDepartment(ctx context.Context, req dto.CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	kind := models.DepartmentKind(req.Kind)
	if !validDepartmentKind(kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department kind")
	}
	var parentID *string
	if req.ParentID != "" {
		if _, err := s.departments.GetByID(ctx, req.ParentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent department not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent department")
		}
		id := req.ParentID
		parentID = &id
	}
	department := &models.Department{
		Code:     req.Code,
		Name:     req.Name,
		Kind:     kind,
		ParentID: parentID,
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// ListDepartments returns the office registry.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// SetDepartmentActive toggles routing eligibility. Inactive departments
// can no longer be forward destinations.
func (s *DirectoryService) SetDepartmentActive(ctx context.Context, id string, active bool) error {
	if _, err := s.departments.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if err := s.departments.SetActive(ctx, id, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return nil
}

// CreateUser registers an account inside an existing department.
func (s *DirectoryService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := models.UserRole(req.Role)
	if !validUserRole(role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if _, err := s.departments.GetByID(ctx, req.DepartmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		DepartmentID: req.DepartmentID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("department_id", user.DepartmentID),
		zap.String("role", string(user.Role)))
	return user, nil
}

// ListUsers returns the accounts of one department.
func (s *DirectoryService) ListUsers(ctx context.Context, departmentID string) ([]models.User, error) {
	users, err := s.users.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// ReassignUser moves a user to another department. A user still holding
// open documents, or with forwards awaiting acceptance, cannot move until
// that work is resolved.
func (s *DirectoryService) ReassignUser(ctx context.Context, req dto.ReassignUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	department, err := s.departments.GetByID(ctx, req.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if !department.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination department is inactive")
	}

	held, err := s.users.CountOpenDocumentsHeldBy(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count held documents")
	}
	if held > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user still holds open documents")
	}
	pending, err := s.users.CountPendingTransfersAuthoredBy(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending transfers")
	}
	if pending > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user still has pending outgoing transfers")
	}

	if err := s.users.UpdateDepartment(ctx, user.ID, department.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign user")
	}
	user.DepartmentID = department.ID
	return user, nil
}
