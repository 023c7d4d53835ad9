package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"hr-evaluator/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ParticipantSummary struct {
	ID    uint        `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

type AnswerView struct {
	AnswerID     uint    `json:"answer_id"`
	QuestionID   uint    `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"max_score"`
	Band         string  `json:"band,omitempty"`
	Comment      string  `json:"comment,omitempty"`

	sortOrder int
}

type CategoryView struct {
	CategoryID   uint         `json:"category_id"`
	Name         string       `json:"name"`
	AverageScore float64      `json:"average_score"`
	Answers      []AnswerView `json:"answers"`

	sortOrder int
}

// EvaluationView is the read-one projection.
type EvaluationView struct {
	domain.Evaluation
	Evaluee    *ParticipantSummary        `json:"evaluee,omitempty"`
	Evaluator  *ParticipantSummary        `json:"evaluator,omitempty"`
	Reviewer   *ParticipantSummary        `json:"reviewer,omitempty"`
	Manager    *ParticipantSummary        `json:"manager,omitempty"`
	Answers    []domain.Answer            `json:"answers"`
	Categories []CategoryView             `json:"categories"`
	History    []domain.EvaluationHistory `json:"history"`
}

// CanRead applies the read visibility rules for one evaluation.
func CanRead(ev *domain.Evaluation, caller domain.Caller) bool {
	if caller.Role.Elevated() || ev.IsApprover(caller.ID) {
		return true
	}
	if caller.ID != ev.EvalueeID {
		return false
	}
	return ev.Status == domain.StatusCompleted ||
		(ev.Status == domain.StatusSelfEvaluating && ev.AllowSelfEvaluation)
}

func (s *EvaluationService) GetEvaluation(ctx context.Context, id uint, caller domain.Caller) (*EvaluationView, error) {
	db := s.db.WithContext(ctx)
	ev, err := loadEvaluation(db, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(ev, caller) {
		return nil, domain.Forbidden("caller %d may not read evaluation %d", caller.ID, id)
	}

	view := &EvaluationView{Evaluation: *ev, Answers: []domain.Answer{}, Categories: []CategoryView{}}
	if err := s.attachParticipants(db, view); err != nil {
		return nil, err
	}
	if err := db.Where("evaluation_id = ?", id).Order("id").Find(&view.Answers).Error; err != nil {
		return nil, fmt.Errorf("load answers of evaluation %d: %w", id, err)
	}
	categories, err := groupByCategory(db, view.Answers)
	if err != nil {
		return nil, err
	}
	view.Categories = categories
	if err := db.Where("evaluation_id = ?", id).Order("id").Find(&view.History).Error; err != nil {
		return nil, fmt.Errorf("load history of evaluation %d: %w", id, err)
	}
	return view, nil
}

func (s *EvaluationService) attachParticipants(db *gorm.DB, view *EvaluationView) error {
	ids := []uint{view.EvalueeID, view.EvaluatorID, view.ReviewerID, view.ManagerID}
	var people []domain.Person
	if err := db.Where("id IN ?", ids).Find(&people).Error; err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	byID := make(map[uint]*ParticipantSummary, len(people))
	for _, p := range people {
		byID[p.ID] = &ParticipantSummary{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
	}
	view.Evaluee = byID[view.EvalueeID]
	view.Evaluator = byID[view.EvaluatorID]
	view.Reviewer = byID[view.ReviewerID]
	view.Manager = byID[view.ManagerID]
	return nil
}

// groupByCategory builds the presentation view of answers, ordered by category
// and question sort order.
func groupByCategory(db *gorm.DB, answers []domain.Answer) ([]CategoryView, error) {
	if len(answers) == 0 {
		return []CategoryView{}, nil
	}
	questionIDs := make([]uint, 0, len(answers))
	for _, a := range answers {
		questionIDs = append(questionIDs, a.QuestionID)
	}
	var questions []domain.Question
	if err := db.Where("id IN ?", questionIDs).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questionByID := make(map[uint]domain.Question, len(questions))
	categoryIDs := make([]uint, 0, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
		categoryIDs = append(categoryIDs, q.CategoryID)
	}
	var categories []domain.Category
	if err := db.Where("id IN ?", categoryIDs).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	groups := make(map[uint]*CategoryView, len(categories))
	for _, c := range categories {
		groups[c.ID] = &CategoryView{CategoryID: c.ID, Name: c.Name, sortOrder: c.SortOrder}
	}
	raw := make(map[uint][]domain.Answer, len(groups))
	for _, a := range answers {
		q, ok := questionByID[a.QuestionID]
		if !ok {
			continue
		}
		g, ok := groups[q.CategoryID]
		if !ok {
			g = &CategoryView{CategoryID: q.CategoryID}
			groups[q.CategoryID] = g
		}
		g.Answers = append(g.Answers, AnswerView{
			AnswerID:     a.ID,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Score:        a.Score,
			MaxScore:     q.MaxScore,
			Band:         q.BandOf(a.Score),
			Comment:      a.Comment,
			sortOrder:    q.SortOrder,
		})
		raw[q.CategoryID] = append(raw[q.CategoryID], a)
	}

	out := make([]CategoryView, 0, len(groups))
	for id, g := range groups {
		if len(g.Answers) == 0 {
			continue
		}
		sort.SliceStable(g.Answers, func(i, j int) bool {
			if g.Answers[i].sortOrder != g.Answers[j].sortOrder {
				return g.Answers[i].sortOrder < g.Answers[j].sortOrder
			}
			return g.Answers[i].QuestionID < g.Answers[j].QuestionID
		})
		g.AverageScore = domain.AverageScore(raw[id])
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].sortOrder != out[j].sortOrder {
			return out[i].sortOrder < out[j].sortOrder
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

type ListFilter struct {
	Status       *domain.Status
	Year         *int
	Period       *domain.Period
	DepartmentID *uint
}

type Pagination struct {
	Page     int
	PageSize int
}

type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ListResult struct {
	Items []domain.Evaluation `json:"items"`
	Meta  PageMeta            `json:"meta"`
}

// ListEvaluations returns one page of evaluations visible to the caller. The
// role scope is applied before, and independently of, the supplied filters.
func (s *EvaluationService) ListEvaluations(ctx context.Context, caller domain.Caller, filter ListFilter, page Pagination) (*ListResult, error) {
	var v domain.Violations
	if filter.Status != nil {
		if _, err := domain.ParseStatus(string(*filter.Status)); err != nil {
			v.Add("status", "%v", err)
		}
	}
	if filter.Period != nil && !filter.Period.Valid() {
		v.Add("period", "unknown period %q", *filter.Period)
	}
	if page.Page < 0 {
		v.Add("page", "must not be negative")
	}
	if page.PageSize < 0 || page.PageSize > maxPageSize {
		v.Add("page_size", "must be between 1 and %d", maxPageSize)
	}
	if err := v.Err("invalid list query"); err != nil {
		return nil, err
	}
	if page.Page == 0 {
		page.Page = 1
	}
	if page.PageSize == 0 {
		page.PageSize = defaultPageSize
	}

	db := s.db.WithContext(ctx)
	q := scopeFor(db.Model(&domain.Evaluation{}), caller)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Year != nil {
		q = q.Where("year = ?", *filter.Year)
	}
	if filter.Period != nil {
		q = q.Where("period = ?", *filter.Period)
	}
	if filter.DepartmentID != nil && caller.Role.Elevated() {
		members := db.Model(&domain.Person{}).Select("id").Where("department_id = ?", *filter.DepartmentID)
		q = q.Where("evaluee_id IN (?)", members)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count evaluations: %w", err)
	}
	items := []domain.Evaluation{}
	err := q.Order("id DESC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	pages := int((total + int64(page.PageSize) - 1) / int64(page.PageSize))
	return &ListResult{
		Items: items,
		Meta:  PageMeta{Page: page.Page, PageSize: page.PageSize, Total: total, TotalPages: pages},
	}, nil
}

// scopeFor restricts a query to the rows the caller's role may see.
func scopeFor(q *gorm.DB, caller domain.Caller) *gorm.DB {
	switch caller.Role {
	case domain.RoleAdmin, domain.RoleHR:
		return q
	case domain.RoleEvaluator:
		return q.Where("evaluator_id = ?", caller.ID)
	case domain.RoleReviewer:
		return q.Where("reviewer_id = ?", caller.ID)
	case domain.RoleManager:
		return q.Where("manager_id = ?", caller.ID)
	default:
		return q.Where("evaluee_id = ?", caller.ID).
			Where("(status = ? OR (status = ? AND allow_self_evaluation = ?))",
				domain.StatusCompleted, domain.StatusSelfEvaluating, true)
	}
}

// DeleteEvaluation removes an evaluation and its children. Admin/HR only.
func (s *EvaluationService) DeleteEvaluation(ctx context.Context, id uint, caller domain.Caller) error {
	if !caller.Role.Elevated() {
		return domain.Forbidden("only admin or HR may delete evaluations")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadEvaluation(tx, id); err != nil {
			return err
		}
		if err := tx.Where("evaluation_id = ?", id).Delete(&domain.Answer{}).Error; err != nil {
			return fmt.Errorf("delete answers of evaluation %d: %w", id, err)
		}
		if err := tx.Where("evaluation_id = ?", id).Delete(&domain.EvaluationHistory{}).Error; err != nil {
			return fmt.Errorf("delete history of evaluation %d: %w", id, err)
		}
		if err := tx.Delete(&domain.Evaluation{}, id).Error; err != nil {
			return fmt.Errorf("delete evaluation %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"evaluation_id": id, "actor_id": caller.ID}).Info("evaluation deleted")
	return nil
}
