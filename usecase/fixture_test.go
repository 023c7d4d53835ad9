package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hr-evaluator/domain"
	"hr-evaluator/infrastructure"
)

// recordingNotifier captures notifications and optionally fails every call.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
	fail  error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.fail
}

func (r *recordingNotifier) take() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}

func kinds(notes []domain.Notification) []domain.NotificationKind {
	out := make([]domain.NotificationKind, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	svc      *EvaluationService
	routing  *RoutingService
	notifier *recordingNotifier
	logs     *test.Hook

	engineering domain.Department
	sales       domain.Department

	admin, hr, evaluator, reviewer, manager domain.Person
	alice, bob, carol                       domain.Person // engineering employees
	dave                                    domain.Person // sales, no routing

	questions []domain.Question
	template  domain.EvaluationTemplate
}

var fixedNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would otherwise get its own empty database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infrastructure.Migrate(db))

	f := &fixture{db: db, notifier: &recordingNotifier{}}
	f.engineering = domain.Department{Name: "Engineering"}
	f.sales = domain.Department{Name: "Sales"}
	require.NoError(t, db.Create(&f.engineering).Error)
	require.NoError(t, db.Create(&f.sales).Error)

	person := func(name string, role domain.Role, dept *uint) domain.Person {
		p := domain.Person{Name: name, Email: name + "@example.com", Role: role, DepartmentID: dept, Active: true}
		require.NoError(t, db.Create(&p).Error)
		return p
	}
	f.admin = person("admin", domain.RoleAdmin, nil)
	f.hr = person("hr", domain.RoleHR, nil)
	f.evaluator = person("evan", domain.RoleEvaluator, &f.engineering.ID)
	f.reviewer = person("rita", domain.RoleReviewer, &f.engineering.ID)
	f.manager = person("mike", domain.RoleManager, &f.engineering.ID)
	f.alice = person("alice", domain.RoleEmployee, &f.engineering.ID)
	f.bob = person("bob", domain.RoleEmployee, &f.engineering.ID)
	f.carol = person("carol", domain.RoleEmployee, &f.engineering.ID)
	f.dave = person("dave", domain.RoleEmployee, &f.sales.ID)

	require.NoError(t, db.Create(&domain.EvaluatorSetup{
		DepartmentID: f.engineering.ID,
		EvaluatorID:  f.evaluator.ID,
		ReviewerID:   f.reviewer.ID,
		ManagerID:    f.manager.ID,
		Active:       true,
		CreatedBy:    f.admin.ID,
	}).Error)

	f.template = domain.EvaluationTemplate{Name: "Engineering 2025", Active: true}
	require.NoError(t, db.Create(&f.template).Error)
	delivery := domain.Category{TemplateID: f.template.ID, Name: "Delivery", SortOrder: 1}
	teamwork := domain.Category{TemplateID: f.template.ID, Name: "Teamwork", SortOrder: 2}
	require.NoError(t, db.Create(&delivery).Error)
	require.NoError(t, db.Create(&teamwork).Error)
	for i, q := range []domain.Question{
		{CategoryID: delivery.ID, Text: "Ships on time", SortOrder: 1},
		{CategoryID: delivery.ID, Text: "Code quality", SortOrder: 2},
		{CategoryID: teamwork.ID, Text: "Helps others", SortOrder: 1},
	} {
		q.MinScore, q.MaxScore, q.Weight = 0, 5, 1
		q.BandA = domain.GradeBand{Min: 4.5, Max: 5, Description: "outstanding"}
		require.NoError(t, db.Create(&q).Error, "question %d", i)
		f.questions = append(f.questions, q)
	}

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f.logs = hook

	routing := infrastructure.NewRoutingRepository(db)
	base := []Option{
		WithNotifier(f.notifier),
		WithLogger(log),
		WithClock(func() time.Time { return fixedNow }),
	}
	f.svc, err = NewEvaluationService(db, routing, append(base, opts...)...)
	require.NoError(t, err)
	f.routing = NewRoutingService(routing, f.svc)
	return f
}

func caller(p domain.Person) domain.Caller {
	return domain.Caller{ID: p.ID, Role: p.Role}
}

func ptr[T any](v T) *T { return &v }

// create opens one evaluation for the evaluee as admin and drains notifications.
func (f *fixture) create(t *testing.T, evaluee domain.Person, allowSelf bool) domain.Evaluation {
	t.Helper()
	res, err := f.svc.CreateEvaluations(context.Background(), caller(f.admin), CreateRequest{
		Year:                2025,
		Period:              domain.PeriodH1,
		EvalueeIDs:          []uint{evaluee.ID},
		AllowSelfEvaluation: allowSelf,
		TemplateID:          &f.template.ID,
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 1, "failures: %+v", res.Failed)
	f.notifier.take()
	return res.Created[0]
}

// answer submits one score per fixture question as the evaluator.
func (f *fixture) answer(t *testing.T, id uint, scores ...float64) {
	t.Helper()
	inputs := make([]domain.AnswerInput, 0, len(scores))
	for i, s := range scores {
		inputs = append(inputs, domain.AnswerInput{QuestionID: f.questions[i].ID, Score: ptr(s)})
	}
	_, err := f.svc.SubmitAnswers(context.Background(), id, caller(f.evaluator), inputs)
	require.NoError(t, err)
}

func (f *fixture) transition(t *testing.T, id uint, who domain.Person, p domain.StagePayload) *domain.Evaluation {
	t.Helper()
	ev, err := f.svc.Transition(context.Background(), id, caller(who), p)
	require.NoError(t, err)
	return ev
}

// toManager drives a fresh evaluation up to MANAGER_REVIEWING.
func (f *fixture) toManager(t *testing.T, evaluee domain.Person, scores ...float64) domain.Evaluation {
	t.Helper()
	ev := f.create(t, evaluee, false)
	f.answer(t, ev.ID, scores...)
	f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})
	f.transition(t, ev.ID, f.reviewer, domain.ReviewerDecision{Approved: ptr(true)})
	f.notifier.take()
	return ev
}

func (f *fixture) reload(t *testing.T, id uint) domain.Evaluation {
	t.Helper()
	var ev domain.Evaluation
	require.NoError(t, f.db.First(&ev, id).Error)
	return ev
}

func requireKind(t *testing.T, err error, kind domain.Kind) *domain.Error {
	t.Helper()
	require.Error(t, err)
	var typed *domain.Error
	require.True(t, errors.As(err, &typed), "untyped error: %v", err)
	require.Equal(t, kind, typed.Kind, "error: %v", err)
	return typed
}
