package handler

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/community-events-api/internal/dto"
	"github.com/noah-isme/community-events-api/internal/middleware"
	"github.com/noah-isme/community-events-api/internal/models"
	"github.com/noah-isme/community-events-api/internal/service"
	appErrors "github.com/noah-isme/community-events-api/pkg/errors"
)

type eventServiceMock struct {
	created   *models.Event
	createErr error
	lastActor models.Actor
	lastQuery dto.EventListQuery
	summary   *dto.DeletionSummary
	getErr    error
}

func (m *eventServiceMock) Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.Event, error) {
	m.lastActor = actor
	return m.created, m.createErr
}

func (m *eventServiceMock) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateEventRequest) (*models.Event, error) {
	return &models.Event{ID: id}, nil
}

func (m *eventServiceMock) Delete(ctx context.Context, actor models.Actor, id string) (*dto.DeletionSummary, error) {
	return m.summary, nil
}

func (m *eventServiceMock) SoftDelete(ctx context.Context, actor models.Actor, id string) error {
	return nil
}

func (m *eventServiceMock) Get(ctx context.Context, id string) (*models.Event, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.Event{ID: id}, nil
}

func (m *eventServiceMock) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	m.lastQuery = query
	return []models.Event{{ID: "evt-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

type capacityMock struct {
	hit bool
}

func (m *capacityMock) Snapshot(ctx context.Context, eventID string) (*dto.CapacitySnapshot, bool, error) {
	return &dto.CapacitySnapshot{EventID: eventID, Registered: 2}, m.hit, nil
}

type registrationServiceMock struct {
	registerCalled bool
	registerOut    *dto.RegistrationOutcome
	registerErr    error
	lastUser       string
	notifyErr      error
}

func (m *registrationServiceMock) Register(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error) {
	m.registerCalled = true
	m.lastUser = userID
	return m.registerOut, m.registerErr
}

func (m *registrationServiceMock) Cancel(ctx context.Context, eventID, userID string) (*dto.CancellationOutcome, error) {
	promoted := "u2"
	return &dto.CancellationOutcome{EventID: eventID, UserID: userID, Cancelled: true, PromotedUserID: &promoted}, nil
}

func (m *registrationServiceMock) Withdraw(ctx context.Context, eventID, userID string) (*dto.WithdrawalOutcome, error) {
	return &dto.WithdrawalOutcome{EventID: eventID, UserID: userID}, nil
}

func (m *registrationServiceMock) Notify(ctx context.Context, actor models.Actor, eventID string) (*dto.WaitlistOffer, error) {
	if m.notifyErr != nil {
		return nil, m.notifyErr
	}
	return &dto.WaitlistOffer{EventID: eventID, UserID: "u2"}, nil
}

func (m *registrationServiceMock) Confirm(ctx context.Context, eventID, userID string) (*dto.RegistrationOutcome, error) {
	return nil, appErrors.ErrNoNotificationFound
}

func (m *registrationServiceMock) Complete(ctx context.Context, actor models.Actor, eventID, userID string) error {
	m.lastUser = userID
	return nil
}

type prerequisiteServiceMock struct {
	check *dto.PrerequisiteCheck
}

func (m *prerequisiteServiceMock) Check(ctx context.Context, userID, eventID string) (*dto.PrerequisiteCheck, error) {
	if m.check != nil {
		return m.check, nil
	}
	return &dto.PrerequisiteCheck{EventID: eventID, UserID: userID, Satisfied: true, Unmet: []dto.UnmetPrerequisite{}}, nil
}

func (m *prerequisiteServiceMock) Create(ctx context.Context, actor models.Actor, req dto.CreatePrerequisiteRequest) (*models.Prerequisite, error) {
	if req.EventID == req.PrerequisiteEventID {
		return nil, appErrors.ErrSelfPrerequisite
	}
	return &models.Prerequisite{ID: "p1", EventID: req.EventID, PrerequisiteEventID: req.PrerequisiteEventID}, nil
}

func (m *prerequisiteServiceMock) Remove(ctx context.Context, actor models.Actor, id string) error {
	return appErrors.ErrPrerequisiteNotFound
}

func (m *prerequisiteServiceMock) ListForEvent(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	return []models.PrerequisiteEdge{}, nil
}

func (m *prerequisiteServiceMock) ListDependents(ctx context.Context, eventID string) ([]models.PrerequisiteEdge, error) {
	return []models.PrerequisiteEdge{}, nil
}

type sessionServiceMock struct{}

func (sessionServiceMock) Create(ctx context.Context, actor models.Actor, eventID string, req dto.CreateSessionRequest) (*models.Session, error) {
	return &models.Session{ID: "s1", EventID: eventID, Attendance: req.Attendance}, nil
}

func (sessionServiceMock) List(ctx context.Context, eventID string) ([]models.Session, error) {
	return []models.Session{}, nil
}

type rosterServiceMock struct{}

func (rosterServiceMock) Roster(ctx context.Context, actor models.Actor, eventID string) (*dto.Roster, error) {
	return &dto.Roster{EventID: eventID, Registered: []dto.RosterEntry{{UserID: "u1"}}, Waitlist: []dto.RosterEntry{}}, nil
}

func (rosterServiceMock) Export(ctx context.Context, actor models.Actor, eventID, format string) (*service.RosterFile, error) {
	if format != service.RosterFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.RosterFile{Filename: "roster.csv", ContentType: "text/csv", Content: []byte("user_id\nu1\n")}, nil
}

type testRig struct {
	router        *gin.Engine
	events        *eventServiceMock
	registrations *registrationServiceMock
	prereqs       *prerequisiteServiceMock
}

// fakeAuth trusts X-Test-User and X-Test-Role.
func fakeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.GetHeader("X-Test-User")
		if user == "" {
			c.Next()
			return
		}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: user, Role: models.Role(c.GetHeader("X-Test-Role"))})
		c.Next()
	}
}

func newTestRig(checks map[string]ReadinessCheck) *testRig {
	gin.SetMode(gin.TestMode)
	rig := &testRig{
		router:        gin.New(),
		events:        &eventServiceMock{created: &models.Event{ID: "evt-new"}, summary: &dto.DeletionSummary{EventID: "evt-1", Registrations: 3}},
		registrations: &registrationServiceMock{registerOut: &dto.RegistrationOutcome{Result: dto.ResultRegistered}},
		prereqs:       &prerequisiteServiceMock{},
	}
	RegisterRoutes(rig.router, "/api/v1", fakeAuth(), Handlers{
		Events:        NewEventHandler(rig.events, &capacityMock{hit: true}),
		Registrations: NewRegistrationHandler(rig.registrations, rig.prereqs),
		Prerequisites: NewPrerequisiteHandler(rig.prereqs),
		Sessions:      NewSessionHandler(sessionServiceMock{}),
		Rosters:       NewRosterHandler(rosterServiceMock{}),
		Metrics:       NewMetricsHandler(service.NewMetricsService(), checks),
	})
	return rig
}

func (r *testRig) do(req *http.Request, user string, role models.Role) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", string(role))
	}
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}
