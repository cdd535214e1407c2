package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/docutrail/dtrs-api/internal/models"
	"github.com/docutrail/dtrs-api/internal/repository"
)

func newTxProviderMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testActor(userID, departmentID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:       userID,
		Role:         role,
		Email:        userID + "@example.com",
		FullName:     "Test User " + userID,
		DepartmentID: departmentID,
	}
}

func strPtr(v string) *string { return &v }

type stubDocumentRepo struct {
	docs       map[string]*models.Document
	created    []*models.Document
	routing    []repository.UpdateRoutingParams
	metadata   map[string][]byte
	lastFilter models.DocumentFilter
	listResult []models.Document
	seq        int
}

func newStubDocumentRepo(docs ...*models.Document) *stubDocumentRepo {
	s := &stubDocumentRepo{docs: map[string]*models.Document{}, metadata: map[string][]byte{}}
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return s
}

func (s *stubDocumentRepo) Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(s.docs)+1)
	}
	if doc.Priority == "" {
		doc.Priority = models.PriorityNormal
	}
	s.docs[doc.ID] = doc
	s.created = append(s.created, doc)
	return nil
}

func (s *stubDocumentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	return &clone, nil
}

func (s *stubDocumentRepo) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	return s.GetByID(ctx, id)
}

func (s *stubDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	s.lastFilter = filter
	return s.listResult, nil
}

func (s *stubDocumentRepo) ListOpen(ctx context.Context, exec sqlx.ExtContext) ([]models.Document, error) {
	open := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.Status != models.DocumentStatusFinished {
			open = append(open, *doc)
		}
	}
	return open, nil
}

func (s *stubDocumentRepo) UpdateRouting(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateRoutingParams) error {
	s.routing = append(s.routing, params)
	if doc, ok := s.docs[params.ID]; ok {
		doc.Status = params.Status
		doc.CurrentDepartmentID = params.CurrentDepartmentID
		doc.CurrentUserID = params.CurrentUserID
		if params.CompletedAt != nil {
			doc.CompletedAt = params.CompletedAt
		}
		doc.UpdatedAt = params.UpdatedAt
	}
	return nil
}

func (s *stubDocumentRepo) UpdateOriginalCustody(ctx context.Context, exec sqlx.ExtContext, id string, departmentID, physicalLocation *string) error {
	if doc, ok := s.docs[id]; ok {
		doc.OriginalCurrentDepartment = departmentID
		doc.OriginalPhysicalLocation = physicalLocation
	}
	return nil
}

func (s *stubDocumentRepo) UpdateReturn(ctx context.Context, exec sqlx.ExtContext, id, returnedTo string, returnedAt time.Time) error {
	if doc, ok := s.docs[id]; ok {
		doc.ReturnedTo = &returnedTo
		doc.ReturnedAt = &returnedAt
	}
	return nil
}

func (s *stubDocumentRepo) UpdateMetadata(ctx context.Context, exec sqlx.ExtContext, id string, metadata []byte) error {
	s.metadata[id] = metadata
	return nil
}

func (s *stubDocumentRepo) NextTrackingSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error) {
	s.seq++
	return s.seq, nil
}

type stubTransferRepo struct {
	pending    map[string]*models.DocumentTransfer
	created    []*models.DocumentTransfer
	resolved   []repository.ResolveTransferParams
	lastFilter models.TransferFilter
	listResult []models.DocumentTransfer
}

func newStubTransferRepo() *stubTransferRepo {
	return &stubTransferRepo{pending: map[string]*models.DocumentTransfer{}}
}

func (s *stubTransferRepo) Create(ctx context.Context, exec sqlx.ExtContext, transfer *models.DocumentTransfer) error {
	if transfer.ID == "" {
		transfer.ID = fmt.Sprintf("transfer-%d", len(s.created)+1)
	}
	s.created = append(s.created, transfer)
	if transfer.Status == models.TransferStatusPending {
		s.pending[transfer.DocumentID] = transfer
	}
	return nil
}

func (s *stubTransferRepo) GetPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentTransfer, error) {
	transfer, ok := s.pending[documentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *transfer
	return &clone, nil
}

func (s *stubTransferRepo) Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveTransferParams) error {
	for docID, transfer := range s.pending {
		if transfer.ID == params.ID {
			transfer.Status = params.Status
			transfer.AcceptedByUserID = params.AcceptedByUserID
			transfer.AcceptedAt = params.AcceptedAt
			s.resolved = append(s.resolved, params)
			delete(s.pending, docID)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *stubTransferRepo) List(ctx context.Context, filter models.TransferFilter) ([]models.DocumentTransfer, error) {
	s.lastFilter = filter
	return s.listResult, nil
}

type stubCustodyRepo struct {
	current map[string]*models.DocumentCustody
	records []*models.DocumentCustody
	copies  []*models.DocumentCopy
	closed  []models.CustodyStatus
}

func newStubCustodyRepo() *stubCustodyRepo {
	return &stubCustodyRepo{current: map[string]*models.DocumentCustody{}}
}

func (s *stubCustodyRepo) GetCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string) (*models.DocumentCustody, error) {
	custody, ok := s.current[documentID]
	if !ok {
		return nil, nil
	}
	clone := *custody
	return &clone, nil
}

func (s *stubCustodyRepo) CloseCurrent(ctx context.Context, exec sqlx.ExtContext, documentID string, status models.CustodyStatus) error {
	s.closed = append(s.closed, status)
	if custody, ok := s.current[documentID]; ok {
		custody.IsCurrent = false
		custody.Status = status
		delete(s.current, documentID)
	}
	return nil
}

func (s *stubCustodyRepo) Create(ctx context.Context, exec sqlx.ExtContext, custody *models.DocumentCustody) error {
	if custody.ID == "" {
		custody.ID = fmt.Sprintf("custody-%d", len(s.records)+1)
	}
	s.records = append(s.records, custody)
	if custody.IsCurrent {
		s.current[custody.DocumentID] = custody
	}
	return nil
}

func (s *stubCustodyRepo) CreateCopy(ctx context.Context, exec sqlx.ExtContext, copyRec *models.DocumentCopy) error {
	if copyRec.ID == "" {
		copyRec.ID = fmt.Sprintf("copy-%d", len(s.copies)+1)
	}
	s.copies = append(s.copies, copyRec)
	return nil
}

func (s *stubCustodyRepo) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentCustody, error) {
	out := make([]models.DocumentCustody, 0)
	for _, custody := range s.records {
		if custody.DocumentID == documentID {
			out = append(out, *custody)
		}
	}
	return out, nil
}

func (s *stubCustodyRepo) ListCopies(ctx context.Context, documentID string) ([]models.DocumentCopy, error) {
	out := make([]models.DocumentCopy, 0)
	for _, copyRec := range s.copies {
		if copyRec.DocumentID == documentID {
			out = append(out, *copyRec)
		}
	}
	return out, nil
}

type stubRelationshipRepo struct {
	rels []*models.DocumentRelationship
}

func (s *stubRelationshipRepo) Create(ctx context.Context, exec sqlx.ExtContext, rel *models.DocumentRelationship) error {
	if rel.ID == "" {
		rel.ID = fmt.Sprintf("rel-%d", len(s.rels)+1)
	}
	s.rels = append(s.rels, rel)
	return nil
}

func (s *stubRelationshipRepo) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentRelationship, error) {
	out := make([]models.DocumentRelationship, 0)
	for _, rel := range s.rels {
		if rel.DocumentID == documentID || rel.RelatedDocumentID == documentID {
			out = append(out, *rel)
		}
	}
	return out, nil
}

type stubEventRepo struct {
	events []models.DocumentEvent
}

func (s *stubEventRepo) Append(ctx context.Context, exec sqlx.ExtContext, event *models.DocumentEvent) error {
	if event.ID == "" {
		event.ID = fmt.Sprintf("event-%d", len(s.events)+1)
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *stubEventRepo) ListByDocument(ctx context.Context, documentID string, limit, offset int) ([]models.DocumentEvent, error) {
	out := make([]models.DocumentEvent, 0)
	for _, event := range s.events {
		if event.DocumentID == documentID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *stubEventRepo) typesFor(documentID string) []string {
	out := make([]string, 0)
	for _, event := range s.events {
		if event.DocumentID == documentID {
			out = append(out, event.EventType)
		}
	}
	return out
}

type stubDepartmentRepo struct {
	departments map[string]*models.Department
	deactivated []string
}

func newStubDepartmentRepo(departments ...*models.Department) *stubDepartmentRepo {
	s := &stubDepartmentRepo{departments: map[string]*models.Department{}}
	for _, department := range departments {
		s.departments[department.ID] = department
	}
	return s
}

func (s *stubDepartmentRepo) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = fmt.Sprintf("dept-%d", len(s.departments)+1)
	}
	department.Active = true
	s.departments[department.ID] = department
	return nil
}

func (s *stubDepartmentRepo) GetByID(ctx context.Context, id string) (*models.Department, error) {
	department, ok := s.departments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *department
	return &clone, nil
}

func (s *stubDepartmentRepo) List(ctx context.Context) ([]models.Department, error) {
	out := make([]models.Department, 0, len(s.departments))
	for _, department := range s.departments {
		out = append(out, *department)
	}
	return out, nil
}

func (s *stubDepartmentRepo) SetActive(ctx context.Context, id string, active bool) error {
	if department, ok := s.departments[id]; ok {
		department.Active = active
		if !active {
			s.deactivated = append(s.deactivated, id)
		}
	}
	return nil
}

type stubUserRepo struct {
	users         map[string]*models.User
	heldCounts    map[string]int
	pendingCounts map[string]int
	reassigned    map[string]string
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	s := &stubUserRepo{users: map[string]*models.User{}, heldCounts: map[string]int{}, pendingCounts: map[string]int{}, reassigned: map[string]string{}}
	for _, user := range users {
		s.users[user.ID] = user
	}
	return s
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(s.users)+1)
	}
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) ListByDepartment(ctx context.Context, departmentID string) ([]models.User, error) {
	out := make([]models.User, 0)
	for _, user := range s.users {
		if user.DepartmentID == departmentID {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (s *stubUserRepo) UpdateDepartment(ctx context.Context, userID, departmentID string) error {
	s.reassigned[userID] = departmentID
	if user, ok := s.users[userID]; ok {
		user.DepartmentID = departmentID
	}
	return nil
}

func (s *stubUserRepo) CountOpenDocumentsHeldBy(ctx context.Context, userID string) (int, error) {
	return s.heldCounts[userID], nil
}

func (s *stubUserRepo) CountPendingTransfersAuthoredBy(ctx context.Context, userID string) (int, error) {
	return s.pendingCounts[userID], nil
}

type stubAlertRepo struct {
	active     []models.DocumentAlert
	created    []models.DocumentAlert
	resolved   []string
	lastFilter models.AlertFilter
}

func (s *stubAlertRepo) ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.DocumentAlert, error) {
	out := make([]models.DocumentAlert, len(s.active))
	copy(out, s.active)
	return out, nil
}

func (s *stubAlertRepo) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.DocumentAlert) error {
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert-%d", len(s.created)+1)
	}
	alert.IsActive = true
	s.created = append(s.created, *alert)
	s.active = append(s.active, *alert)
	return nil
}

func (s *stubAlertRepo) Resolve(ctx context.Context, exec sqlx.ExtContext, id string, resolvedAt time.Time) error {
	s.resolved = append(s.resolved, id)
	kept := s.active[:0]
	for _, alert := range s.active {
		if alert.ID != id {
			kept = append(kept, alert)
		}
	}
	s.active = kept
	return nil
}

func (s *stubAlertRepo) List(ctx context.Context, filter models.AlertFilter) ([]models.DocumentAlert, error) {
	s.lastFilter = filter
	return s.active, nil
}
