package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-evaluator/domain"
)

func TestTransition_FullApprovalComputesResult(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	assert.Equal(t, domain.StatusEvaluatorEvaluating, ev.Status)

	f.answer(t, ev.ID, 3, 5)

	got := f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true), Comment: ptr("solid half")})
	assert.Equal(t, domain.StatusReviewerReviewing, got.Status)
	assert.Equal(t, "solid half", got.EvaluatorComment)
	require.NotNil(t, got.EvaluatorApproved)
	assert.True(t, *got.EvaluatorApproved)
	notes := f.notifier.take()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyReviewRequested, notes[0].Kind)
	assert.Equal(t, f.reviewer.ID, notes[0].RecipientID)
	assert.Equal(t, "rita", notes[0].RecipientName)
	assert.Equal(t, "alice", notes[0].EvalueeName)

	got = f.transition(t, ev.ID, f.reviewer, domain.ReviewerDecision{Approved: ptr(true)})
	assert.Equal(t, domain.StatusManagerReviewing, got.Status)
	notes = f.notifier.take()
	require.Len(t, notes, 1)
	assert.Equal(t, f.manager.ID, notes[0].RecipientID)

	got = f.transition(t, ev.ID, f.manager, domain.ManagerDecision{Approved: ptr(true)})
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.FinalScore)
	assert.InDelta(t, 80.0, *got.FinalScore, 0.001)
	assert.Equal(t, domain.GradeBPlus, got.FinalGrade)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ManagerApproved)
	assert.True(t, *got.ManagerApproved)

	notes = f.notifier.take()
	require.Len(t, notes, 2)
	assert.Equal(t, []domain.NotificationKind{domain.NotifyResultReady, domain.NotifyResultReady}, kinds(notes))
	assert.Equal(t, f.alice.ID, notes[0].RecipientID)
	assert.True(t, notes[1].IsAdminChannel())
	require.NotNil(t, notes[0].FinalScore)
	assert.InDelta(t, 80.0, *notes[0].FinalScore, 0.001)

	var history []domain.EvaluationHistory
	require.NoError(t, f.db.Where("evaluation_id = ?", ev.ID).Order("id").Find(&history).Error)
	require.Len(t, history, 4)
	assert.Equal(t, domain.ActionCreate, history[0].Action)
	assert.Equal(t, domain.StatusCompleted, history[3].ToStatus)
	assert.Equal(t, f.manager.ID, history[3].ActorID)
}

func TestTransition_WeightedAggregation(t *testing.T) {
	f := newFixture(t, WithAggregator(domain.WeightedAggregator{}))
	require.NoError(t, f.db.Model(&domain.Question{}).Where("id = ?", f.questions[1].ID).Update("weight", 3).Error)

	ev := f.toManager(t, f.alice, 3, 5)
	got := f.transition(t, ev.ID, f.manager, domain.ManagerDecision{Approved: ptr(true)})
	require.NotNil(t, got.FinalScore)
	assert.InDelta(t, 90.0, *got.FinalScore, 0.001)
	assert.Equal(t, domain.GradeA, got.FinalGrade)
}

func TestTransition_CompleteWithoutAnswers(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})
	f.transition(t, ev.ID, f.reviewer, domain.ReviewerDecision{Approved: ptr(true)})

	got := f.transition(t, ev.ID, f.manager, domain.ManagerDecision{Approved: ptr(true)})
	require.NotNil(t, got.FinalScore)
	assert.Equal(t, 0.0, *got.FinalScore)
	assert.Equal(t, domain.GradeF, got.FinalGrade)
}

func TestTransition_ReviewerRejectionLoop(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	f.answer(t, ev.ID, 4, 4)
	f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})

	for round := 0; round < 3; round++ {
		f.notifier.take()
		got := f.transition(t, ev.ID, f.reviewer, domain.ReviewerDecision{Approved: ptr(false), RejectedReason: " needs examples "})
		assert.Equal(t, domain.StatusRejected, got.Status)
		assert.Equal(t, "needs examples", got.ReviewerRejectedReason)
		require.NotNil(t, got.ReviewerApproved)
		assert.False(t, *got.ReviewerApproved)
		assert.Nil(t, got.EvaluatorApproved)

		notes := f.notifier.take()
		require.Len(t, notes, 1)
		assert.Equal(t, domain.NotifyRejectedReturned, notes[0].Kind)
		assert.Equal(t, f.evaluator.ID, notes[0].RecipientID)
		assert.Equal(t, "needs examples", notes[0].Reason)

		// Answers stay editable while rejected.
		f.answer(t, ev.ID, 5, 4)
		got = f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})
		assert.Equal(t, domain.StatusReviewerReviewing, got.Status)
		assert.Nil(t, got.ReviewerApproved)
	}
	assert.Equal(t, domain.StatusReviewerReviewing, f.reload(t, ev.ID).Status)
}

func TestTransition_ManagerRejectReturnsToReviewer(t *testing.T) {
	f := newFixture(t)
	ev := f.toManager(t, f.alice, 3, 3)

	got := f.transition(t, ev.ID, f.manager, domain.ManagerDecision{Approved: ptr(false), RejectedReason: "calibrate"})
	assert.Equal(t, domain.StatusReviewerReviewing, got.Status)
	assert.Equal(t, "calibrate", got.ManagerRejectedReason)
	assert.Nil(t, got.ReviewerApproved)
	assert.Nil(t, got.FinalScore)

	notes := f.notifier.take()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyRejectedReturned, notes[0].Kind)
	assert.Equal(t, f.reviewer.ID, notes[0].RecipientID)

	got = f.transition(t, ev.ID, f.reviewer, domain.ReviewerDecision{Approved: ptr(true)})
	assert.Equal(t, domain.StatusManagerReviewing, got.Status)
	assert.Nil(t, got.ManagerApproved)
}

func TestTransition_RejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})
	f.notifier.take()
	before := f.reload(t, ev.ID)

	for _, reason := range []string{"", "   "} {
		_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.reviewer),
			domain.ReviewerDecision{Approved: ptr(false), RejectedReason: reason})
		typed := requireKind(t, err, domain.KindValidation)
		require.Len(t, typed.Violations, 1)
		assert.Equal(t, "reviewer_rejected_reason", typed.Violations[0].Field)
	}

	after := f.reload(t, ev.ID)
	assert.Equal(t, domain.StatusReviewerReviewing, after.Status)
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, f.notifier.take())
}

func TestTransition_EvaluatorCannotReject(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.evaluator), domain.EvaluatorDecision{Approved: ptr(false)})
	requireKind(t, err, domain.KindValidation)
	assert.Equal(t, domain.StatusEvaluatorEvaluating, f.reload(t, ev.ID).Status)
}

func TestTransition_WrongActor(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.reviewer), domain.EvaluatorDecision{Approved: ptr(true)})
	requireKind(t, err, domain.KindForbidden)

	_, err = f.svc.Transition(context.Background(), ev.ID, caller(f.alice), domain.AdminEdit{Status: ptr(domain.StatusCompleted)})
	requireKind(t, err, domain.KindForbidden)
}

func TestTransition_StageNotActive(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.reviewer), domain.ReviewerDecision{Approved: ptr(true)})
	requireKind(t, err, domain.KindStateConflict)

	_, err = f.svc.Transition(context.Background(), ev.ID, caller(f.manager), domain.ManagerDecision{Comment: ptr("early")})
	requireKind(t, err, domain.KindStateConflict)
	assert.Empty(t, f.reload(t, ev.ID).ManagerComment)
}

func TestTransition_CompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ev := f.toManager(t, f.alice, 4, 4)
	f.transition(t, ev.ID, f.manager, domain.ManagerDecision{Approved: ptr(true)})

	_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.manager), domain.ManagerDecision{Approved: ptr(false), RejectedReason: "oops"})
	requireKind(t, err, domain.KindStateConflict)
	_, err = f.svc.Transition(context.Background(), ev.ID, caller(f.admin), domain.EvaluatorDecision{Approved: ptr(true)})
	requireKind(t, err, domain.KindStateConflict)
	assert.Equal(t, domain.StatusCompleted, f.reload(t, ev.ID).Status)
}

func TestTransition_CommentOnly(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	got := f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Comment: ptr("draft notes")})
	assert.Equal(t, domain.StatusEvaluatorEvaluating, got.Status)
	assert.Equal(t, "draft notes", got.EvaluatorComment)
	assert.Empty(t, f.notifier.take())

	var n int64
	require.NoError(t, f.db.Model(&domain.EvaluationHistory{}).Where("evaluation_id = ?", ev.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n, "only the create entry")
}

func TestTransition_NothingToUpdate(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	_, err := f.svc.Transition(context.Background(), ev.ID, caller(f.evaluator), domain.EvaluatorDecision{})
	requireKind(t, err, domain.KindValidation)

	got, err := f.svc.Transition(context.Background(), ev.ID, caller(f.admin), domain.AdminEdit{})
	require.NoError(t, err)
	assert.Equal(t, ev.Version, got.Version)
	assert.Equal(t, domain.StatusEvaluatorEvaluating, got.Status)

	_, err = f.svc.Transition(context.Background(), ev.ID, caller(f.admin), nil)
	requireKind(t, err, domain.KindValidation)
}

func TestTransition_SelfSubmission(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, true)
	assert.Equal(t, domain.StatusSelfEvaluating, ev.Status)

	got := f.transition(t, ev.ID, f.alice, domain.SelfSubmission{Comment: ptr("my take")})
	assert.Equal(t, domain.StatusSelfEvaluating, got.Status)
	assert.Equal(t, "my take", got.SelfComment)

	// Answers are locked until the evaluee hands over.
	_, err := f.svc.SubmitAnswers(context.Background(), ev.ID, caller(f.evaluator),
		[]domain.AnswerInput{{QuestionID: f.questions[0].ID, Score: ptr(4.0)}})
	requireKind(t, err, domain.KindStateConflict)

	got = f.transition(t, ev.ID, f.alice, domain.SelfSubmission{Submitted: true})
	assert.Equal(t, domain.StatusEvaluatorEvaluating, got.Status)
	require.NotNil(t, got.SelfSubmittedAt)
	notes := f.notifier.take()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyReviewRequested, notes[0].Kind)
	assert.Equal(t, f.evaluator.ID, notes[0].RecipientID)

	_, err = f.svc.Transition(context.Background(), ev.ID, caller(f.alice), domain.SelfSubmission{Submitted: true})
	requireKind(t, err, domain.KindStateConflict)
}

func TestTransition_AdminOverride(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	got := f.transition(t, ev.ID, f.hr, domain.EvaluatorDecision{Approved: ptr(true)})
	assert.Equal(t, domain.StatusReviewerReviewing, got.Status)

	var last domain.EvaluationHistory
	require.NoError(t, f.db.Where("evaluation_id = ?", ev.ID).Order("id DESC").First(&last).Error)
	assert.Equal(t, f.hr.ID, last.ActorID)
}

func TestTransition_AdminEdit(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)

	got := f.transition(t, ev.ID, f.admin, domain.AdminEdit{
		Period:    ptr(domain.PeriodH2),
		Status:    ptr(domain.StatusManagerReviewing),
		ManagerID: ptr(f.hr.ID),
	})
	assert.Equal(t, domain.PeriodH2, got.Period)
	assert.Equal(t, domain.StatusManagerReviewing, got.Status)
	assert.Equal(t, f.hr.ID, got.ManagerID)
	assert.Nil(t, got.FinalScore)
	assert.Empty(t, f.notifier.take(), "admin edits have no side effects")

	var last domain.EvaluationHistory
	require.NoError(t, f.db.Where("evaluation_id = ?", ev.ID).Order("id DESC").First(&last).Error)
	assert.Equal(t, domain.ActionEdit, last.Action)
	assert.Equal(t, domain.StatusEvaluatorEvaluating, last.FromStatus)
}

func TestTransition_AdminEditValidation(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, f.alice, false)
	res, err := f.svc.CreateEvaluations(context.Background(), caller(f.admin), CreateRequest{
		Year: 2025, Period: domain.PeriodH2, EvalueeIDs: []uint{f.alice.ID},
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	second := res.Created[0]

	_, err = f.svc.Transition(context.Background(), second.ID, caller(f.admin), domain.AdminEdit{
		Year:       ptr(1999),
		Period:     ptr(first.Period),
		ReviewerID: ptr(uint(9999)),
		Status:     ptr(domain.Status("ARCHIVED")),
	})
	typed := requireKind(t, err, domain.KindValidation)
	fields := make([]string, 0, len(typed.Violations))
	for _, v := range typed.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"year", "status", "reviewer_id"}, fields)

	_, err = f.svc.Transition(context.Background(), second.ID, caller(f.admin), domain.AdminEdit{Period: ptr(first.Period)})
	typed = requireKind(t, err, domain.KindValidation)
	require.Len(t, typed.Violations, 1)
	assert.Equal(t, "period", typed.Violations[0].Field)
	assert.Equal(t, domain.PeriodH2, f.reload(t, second.ID).Period)
}

func TestTransition_ConcurrentManagerApproval(t *testing.T) {
	f := newFixture(t)
	ev := f.toManager(t, f.alice, 4, 5)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Transition(context.Background(), ev.ID, caller(f.manager), domain.ManagerDecision{Approved: ptr(true)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrStateConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var n int64
	require.NoError(t, f.db.Model(&domain.EvaluationHistory{}).
		Where("evaluation_id = ? AND to_status = ?", ev.ID, domain.StatusCompleted).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	results := 0
	for _, note := range f.notifier.take() {
		if note.Kind == domain.NotifyResultReady && !note.IsAdminChannel() {
			results++
		}
	}
	assert.Equal(t, 1, results)
}

func TestTransition_StaleVersionIsRetryable(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	stale := f.reload(t, ev.ID)
	f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Comment: ptr("first")})

	err := writeEvaluation(f.db, &stale, map[string]any{"evaluator_comment": "second"}, fixedNow)
	typed := requireKind(t, err, domain.KindStateConflict)
	assert.True(t, typed.Retryable)
	assert.Equal(t, "first", f.reload(t, ev.ID).EvaluatorComment)
}

func TestTransition_NotificationFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	ev := f.create(t, f.alice, false)
	f.notifier.fail = errors.New("smtp down")

	got := f.transition(t, ev.ID, f.evaluator, domain.EvaluatorDecision{Approved: ptr(true)})
	assert.Equal(t, domain.StatusReviewerReviewing, got.Status)
	assert.Equal(t, domain.StatusReviewerReviewing, f.reload(t, ev.ID).Status)

	var warned bool
	for _, entry := range f.logs.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "notification delivery failed" {
			warned = true
			assert.Equal(t, domain.NotifyReviewRequested, entry.Data["kind"])
		}
	}
	assert.True(t, warned)
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), 4242, caller(f.admin), domain.EvaluatorDecision{Approved: ptr(true)})
	requireKind(t, err, domain.KindNotFound)
}
