package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
	"github.com/kadro-hq/kadro/internal/server/middleware"
	"github.com/kadro-hq/kadro/internal/task"
)

// ---------------------------------------------------------------------------
// Context helpers — inject user/role into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID, role string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, role)
	return ctx
}

func memberCtx(userID uuid.UUID) context.Context  { return userCtx(userID, domain.RoleMember) }
func managerCtx(userID uuid.UUID) context.Context { return userCtx(userID, domain.RoleManager) }
func adminCtx(userID uuid.UUID) context.Context   { return userCtx(userID, domain.RoleAdmin) }

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users         domain.UserRepository
	groups        domain.GroupRepository
	tasks         domain.TaskRepository
	notifications domain.NotificationRepository
}

func (m *mockDataStore) Users() domain.UserRepository                 { return m.users }
func (m *mockDataStore) Groups() domain.GroupRepository               { return m.groups }
func (m *mockDataStore) Tasks() domain.TaskRepository                 { return m.tasks }
func (m *mockDataStore) Notifications() domain.NotificationRepository { return m.notifications }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	listFunc       func(ctx context.Context) ([]*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	return m.listFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock GroupRepository
// ---------------------------------------------------------------------------

type mockGroupRepo struct {
	createFunc         func(ctx context.Context, g *domain.Group) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	listFunc           func(ctx context.Context) ([]*domain.Group, error)
	resolveMembersFunc func(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	addMemberFunc      func(ctx context.Context, groupID, userID uuid.UUID) error
	removeMemberFunc   func(ctx context.Context, groupID, userID uuid.UUID) error
}

func (m *mockGroupRepo) Create(ctx context.Context, g *domain.Group) error {
	return m.createFunc(ctx, g)
}

func (m *mockGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockGroupRepo) List(ctx context.Context) ([]*domain.Group, error) {
	return m.listFunc(ctx)
}

func (m *mockGroupRepo) ResolveMembers(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return m.resolveMembersFunc(ctx, id)
}

func (m *mockGroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return m.addMemberFunc(ctx, groupID, userID)
}

func (m *mockGroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return m.removeMemberFunc(ctx, groupID, userID)
}

// ---------------------------------------------------------------------------
// Mock TaskRepository
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	createFunc                func(ctx context.Context, t *domain.Task) error
	getByIDFunc               func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	saveFunc                  func(ctx context.Context, t *domain.Task) error
	listActiveFunc            func(ctx context.Context, limit, offset int) ([]*domain.Task, error)
	listByAssigneeFunc        func(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	findOverdueCandidatesFunc func(ctx context.Context, now time.Time) ([]*domain.Task, error)
	setActiveFunc             func(ctx context.Context, id uuid.UUID, active bool) error
}

func (m *mockTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	return m.createFunc(ctx, t)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTaskRepo) Save(ctx context.Context, t *domain.Task) error {
	return m.saveFunc(ctx, t)
}

func (m *mockTaskRepo) ListActive(ctx context.Context, limit, offset int) ([]*domain.Task, error) {
	return m.listActiveFunc(ctx, limit, offset)
}

func (m *mockTaskRepo) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return m.listByAssigneeFunc(ctx, userID)
}

func (m *mockTaskRepo) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	return m.findOverdueCandidatesFunc(ctx, now)
}

func (m *mockTaskRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.setActiveFunc(ctx, id, active)
}

// ---------------------------------------------------------------------------
// Mock NotificationRepository
// ---------------------------------------------------------------------------

type mockNotificationRepo struct {
	createFunc      func(ctx context.Context, n *domain.Notification) error
	listByUserFunc  func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Notification, error)
	countUnreadFunc func(ctx context.Context, userID uuid.UUID) (int64, error)
	markReadFunc    func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return m.createFunc(ctx, n)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	return m.listByUserFunc(ctx, userID, limit, offset)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.countUnreadFunc(ctx, userID)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return m.markReadFunc(ctx, userID, id)
}

// ---------------------------------------------------------------------------
// Mock TaskEngine
// ---------------------------------------------------------------------------

type mockEngine struct {
	createFunc        func(ctx context.Context, p task.CreateTaskParams) (*domain.Task, error)
	reportStatusFunc  func(ctx context.Context, taskID, actingUserID uuid.UUID, newStatus domain.Status, remarks string) (*domain.Task, error)
	addAssigneesFunc  func(ctx context.Context, taskID, editorID uuid.UUID, userIDs, groupIDs []uuid.UUID) (*domain.Task, error)
	updateDetailsFunc func(ctx context.Context, taskID, editorID uuid.UUID, p task.UpdateDetailsParams) (*domain.Task, error)
	setActiveFunc     func(ctx context.Context, taskID uuid.UUID, active bool) error
}

func (m *mockEngine) Create(ctx context.Context, p task.CreateTaskParams) (*domain.Task, error) {
	return m.createFunc(ctx, p)
}

func (m *mockEngine) ReportStatus(ctx context.Context, taskID, actingUserID uuid.UUID, newStatus domain.Status, remarks string) (*domain.Task, error) {
	return m.reportStatusFunc(ctx, taskID, actingUserID, newStatus, remarks)
}

func (m *mockEngine) AddAssignees(ctx context.Context, taskID, editorID uuid.UUID, userIDs, groupIDs []uuid.UUID) (*domain.Task, error) {
	return m.addAssigneesFunc(ctx, taskID, editorID, userIDs, groupIDs)
}

func (m *mockEngine) UpdateDetails(ctx context.Context, taskID, editorID uuid.UUID, p task.UpdateDetailsParams) (*domain.Task, error) {
	return m.updateDetailsFunc(ctx, taskID, editorID, p)
}

func (m *mockEngine) SetActive(ctx context.Context, taskID uuid.UUID, active bool) error {
	return m.setActiveFunc(ctx, taskID, active)
}

// ---------------------------------------------------------------------------
// Mock OverdueScanner
// ---------------------------------------------------------------------------

type mockScanner struct {
	scanFunc func(ctx context.Context, now time.Time) (task.ScanReport, error)
}

func (m *mockScanner) ScanAndMarkOverdue(ctx context.Context, now time.Time) (task.ScanReport, error) {
	return m.scanFunc(ctx, now)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, email, password, name, role string) (*domain.User, error)
	loginFunc        func(ctx context.Context, email, password string) (string, string, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, name, role)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

// ---------------------------------------------------------------------------
// Mock Publisher
// ---------------------------------------------------------------------------

type mockPublisher struct {
	published map[string][][]byte
	err       error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{published: make(map[string][][]byte)}
}

func (m *mockPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.published[channel] = append(m.published[channel], payload)
	return nil
}
