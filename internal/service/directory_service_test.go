package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/docutrail/dtrs-api/internal/dto"
	"github.com/docutrail/dtrs-api/internal/models"
	appErrors "github.com/docutrail/dtrs-api/pkg/errors"
)

func newDirectoryFixture() (*DirectoryService, *stubDepartmentRepo, *stubUserRepo) {
	departments := newStubDepartmentRepo(
		&models.Department{ID: "dept-1", Code: "REC", Name: "Records", Kind: models.DepartmentKindDepartment, Active: true},
		&models.Department{ID: "dept-2", Code: "LEG", Name: "Legal", Kind: models.DepartmentKindDepartment, Active: true},
		&models.Department{ID: "dept-closed", Code: "OLD", Name: "Archive", Kind: models.DepartmentKindDepartment, Active: false},
	)
	users := newStubUserRepo(
		&models.User{ID: "user-1", Email: "one@example.com", FullName: "User One", Role: models.RoleRecordsOfficer, DepartmentID: "dept-1", Active: true},
	)
	return NewDirectoryService(departments, users, nil, nil), departments, users
}

func TestDirectoryCreateDepartmentRejectsUnknownKind(t *testing.T) {
	svc, _, _ := newDirectoryFixture()

	_, err := svc.CreateDepartment(context.Background(), dto.CreateDepartmentRequest{
		Code: "HR",
		Name: "Human Resources",
		Kind: "BUREAU",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDirectoryCreateDepartmentLinksParent(t *testing.T) {
	svc, departments, _ := newDirectoryFixture()

	created, err := svc.CreateDepartment(context.Background(), dto.CreateDepartmentRequest{
		Code:     "REC-N",
		Name:     "Records North",
		Kind:     string(models.DepartmentKindDistrict),
		ParentID: "dept-1",
	})
	require.NoError(t, err)

	require.NotEmpty(t, created.ID)
	require.True(t, created.Active)
	require.Equal(t, "dept-1", *created.ParentID)
	require.Contains(t, departments.departments, created.ID)
}

func TestDirectoryCreateUserHashesPassword(t *testing.T) {
	svc, _, users := newDirectoryFixture()

	created, err := svc.CreateUser(context.Background(), dto.CreateUserRequest{
		Email:        "new@example.com",
		Password:     "first-password",
		FullName:     "New Officer",
		Role:         string(models.RoleRecordsOfficer),
		DepartmentID: "dept-1",
	})
	require.NoError(t, err)

	require.True(t, created.Active)
	require.NotEqual(t, "first-password", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("first-password")))
	require.Contains(t, users.users, created.ID)
}

func TestDirectoryCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newDirectoryFixture()

	_, err := svc.CreateUser(context.Background(), dto.CreateUserRequest{
		Email:        "one@example.com",
		Password:     "first-password",
		FullName:     "Duplicate",
		Role:         string(models.RoleViewer),
		DepartmentID: "dept-1",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDirectoryReassignUserMovesIdleUser(t *testing.T) {
	svc, _, users := newDirectoryFixture()

	moved, err := svc.ReassignUser(context.Background(), dto.ReassignUserRequest{
		UserID:       "user-1",
		DepartmentID: "dept-2",
	})
	require.NoError(t, err)

	require.Equal(t, "dept-2", moved.DepartmentID)
	require.Equal(t, "dept-2", users.reassigned["user-1"])
}

func TestDirectoryReassignUserBlockedWhileHoldingDocuments(t *testing.T) {
	svc, _, users := newDirectoryFixture()
	users.heldCounts["user-1"] = 3

	_, err := svc.ReassignUser(context.Background(), dto.ReassignUserRequest{
		UserID:       "user-1",
		DepartmentID: "dept-2",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Empty(t, users.reassigned)
}

func TestDirectoryReassignUserBlockedWhileForwardInFlight(t *testing.T) {
	svc, _, users := newDirectoryFixture()
	users.pendingCounts["user-1"] = 1

	_, err := svc.ReassignUser(context.Background(), dto.ReassignUserRequest{
		UserID:       "user-1",
		DepartmentID: "dept-2",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Empty(t, users.reassigned)
}

func TestDirectoryReassignUserRejectsInactiveDestination(t *testing.T) {
	svc, _, _ := newDirectoryFixture()

	_, err := svc.ReassignUser(context.Background(), dto.ReassignUserRequest{
		UserID:       "user-1",
		DepartmentID: "dept-closed",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDirectorySetDepartmentActiveTogglesRouting(t *testing.T) {
	svc, departments, _ := newDirectoryFixture()

	require.NoError(t, svc.SetDepartmentActive(context.Background(), "dept-2", false))
	require.False(t, departments.departments["dept-2"].Active)
	require.Equal(t, []string{"dept-2"}, departments.deactivated)

	err := svc.SetDepartmentActive(context.Background(), "dept-missing", false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
