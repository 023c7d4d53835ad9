package interfaces

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hr-evaluator/domain"
	"hr-evaluator/usecase"
)

type HTTPHandler struct {
	Evaluations *usecase.EvaluationService
	Routing     *usecase.RoutingService
}

func NewHTTPHandler(router *gin.Engine, evaluations *usecase.EvaluationService, routing *usecase.RoutingService, resolver CallerResolver) {
	h := &HTTPHandler{Evaluations: evaluations, Routing: routing}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", Authenticate(resolver))
	api.POST("/evaluations", h.CreateEvaluations)
	api.GET("/evaluations", h.ListEvaluations)
	api.GET("/evaluations/:id", h.GetEvaluation)
	api.PATCH("/evaluations/:id", h.Transition)
	api.DELETE("/evaluations/:id", h.DeleteEvaluation)
	api.PUT("/evaluations/:id/answers", h.SubmitAnswers)
	api.GET("/evaluator-setups/:departmentId", h.GetEvaluatorSetup)
	api.PUT("/evaluator-setups/:departmentId", h.ConfigureEvaluatorSetup)
}

type createEvaluationsRequest struct {
	Year                int    `json:"year" binding:"required"`
	Period              string `json:"period" binding:"required"`
	EvalueeIDs          []uint `json:"evaluee_ids" binding:"required,min=1"`
	AllowSelfEvaluation bool   `json:"allow_self_evaluation"`
	TemplateID          *uint  `json:"template_id"`
}

// CreateEvaluations opens a cycle for a batch of evaluees. A partial success
// answers 207 with the failed evaluees listed.
func (h *HTTPHandler) CreateEvaluations(c *gin.Context) {
	var req createEvaluationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindingError(err))
		return
	}
	result, err := h.Evaluations.CreateEvaluations(c.Request.Context(), callerFrom(c), usecase.CreateRequest{
		Year:                req.Year,
		Period:              domain.Period(strings.ToUpper(strings.TrimSpace(req.Period))),
		EvalueeIDs:          req.EvalueeIDs,
		AllowSelfEvaluation: req.AllowSelfEvaluation,
		TemplateID:          req.TemplateID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}

func (h *HTTPHandler) ListEvaluations(c *gin.Context) {
	var (
		filter usecase.ListFilter
		page   usecase.Pagination
		v      domain.Violations
	)
	if s := c.Query("status"); s != "" {
		st := domain.Status(strings.ToUpper(s))
		filter.Status = &st
	}
	if s := c.Query("period"); s != "" {
		p := domain.Period(strings.ToUpper(s))
		filter.Period = &p
	}
	if s := c.Query("year"); s != "" {
		if year, err := strconv.Atoi(s); err != nil {
			v.Add("year", "must be an integer")
		} else {
			filter.Year = &year
		}
	}
	if s := c.Query("department_id"); s != "" {
		if id, err := strconv.ParseUint(s, 10, 64); err != nil {
			v.Add("department_id", "must be a positive integer")
		} else {
			dept := uint(id)
			filter.DepartmentID = &dept
		}
	}
	if s := c.Query("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			v.Add("page", "must be an integer")
		}
		page.Page = n
	}
	if s := c.Query("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			v.Add("page_size", "must be an integer")
		}
		page.PageSize = n
	}
	if err := v.Err("invalid list query"); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.Evaluations.ListEvaluations(c.Request.Context(), callerFrom(c), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) GetEvaluation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.Evaluations.GetEvaluation(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type submitAnswersRequest struct {
	Answers []domain.AnswerInput `json:"answers"`
}

func (h *HTTPHandler) SubmitAnswers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req submitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindingError(err))
		return
	}
	saved, err := h.Evaluations.SubmitAnswers(c.Request.Context(), id, callerFrom(c), req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (h *HTTPHandler) Transition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindingError(err))
		return
	}
	payload, err := req.payload()
	if err != nil {
		writeError(c, err)
		return
	}
	ev, err := h.Evaluations.Transition(c.Request.Context(), id, callerFrom(c), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *HTTPHandler) DeleteEvaluation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Evaluations.DeleteEvaluation(c.Request.Context(), id, callerFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) GetEvaluatorSetup(c *gin.Context) {
	dept, ok := pathID(c, "departmentId")
	if !ok {
		return
	}
	setup, err := h.Routing.GetRouting(c.Request.Context(), callerFrom(c), dept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

type evaluatorSetupRequest struct {
	EvaluatorID uint `json:"evaluator_id" binding:"required"`
	ReviewerID  uint `json:"reviewer_id" binding:"required"`
	ManagerID   uint `json:"manager_id" binding:"required"`
}

func (h *HTTPHandler) ConfigureEvaluatorSetup(c *gin.Context) {
	dept, ok := pathID(c, "departmentId")
	if !ok {
		return
	}
	var req evaluatorSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindingError(err))
		return
	}
	setup, err := h.Routing.ConfigureRouting(c.Request.Context(), callerFrom(c), dept, domain.Route{
		EvaluatorID: req.EvaluatorID,
		ReviewerID:  req.ReviewerID,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		writeError(c, domain.Invalid("invalid id", domain.Violation{Field: name, Message: "must be a positive integer"}))
		return 0, false
	}
	return uint(id), true
}
