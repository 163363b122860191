package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the REST API.
type Handler struct {
	users    *app.UserService
	play     *app.PlayService
	reports  *app.ReportService
	homework *app.HomeworkService
	catalog  *app.Catalog
	today    func() string
	logger   *zap.Logger

	adminPassword string
}

type HandlerDeps struct {
	Users    *app.UserService
	Play     *app.PlayService
	Reports  *app.ReportService
	Homework *app.HomeworkService
	Catalog  *app.Catalog
	// Today returns the current day key; it fills in omitted date parameters.
	Today  func() string
	Logger *zap.Logger
	// AdminPassword unlocks /api/admin. Empty keeps the admin routes closed.
	AdminPassword string
}

func NewHandler(d HandlerDeps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		users:    d.Users,
		play:     d.Play,
		reports:  d.Reports,
		homework: d.Homework,
		catalog:  d.Catalog,
		today:    d.Today,
		logger:   logger,

		adminPassword: d.AdminPassword,
	}
}

func (h *Handler) Routes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/users", h.register)
	api.POST("/login", h.login)
	api.GET("/users/:id", h.getUser)
	api.GET("/users/:id/daily", h.userDaily)

	api.GET("/banks", h.listBanks)

	api.POST("/attempts", h.startAttempt)
	api.GET("/attempts/current", h.currentAttempt)
	api.POST("/attempts/answer", h.answer)
	api.POST("/attempts/navigate", h.navigate)
	api.POST("/attempts/restart", h.restart)
	api.DELETE("/attempts", h.discard)

	api.GET("/leaderboard", h.leaderboard)
	api.GET("/stats/daily", h.dailyStats)

	admin := api.Group("/admin", h.requireAdmin)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/homework/dashboard", h.homeworkDashboard)
}

// AdminPasswordHeader carries the admin password on /api/admin requests.
const AdminPasswordHeader = "X-Admin-Password"

func (h *Handler) requireAdmin(c *gin.Context) {
	given := c.GetHeader(AdminPasswordHeader)
	if h.adminPassword == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.adminPassword)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: domain.ErrInvalidCredentials.Error()})
		return
	}
	c.Next()
}

type registerRequest struct {
	Name       string `json:"name" binding:"required"`
	School     string `json:"school"`
	Team       string `json:"team"`
	Credential string `json:"credential" binding:"required"`
}

type loginRequest struct {
	Name       string `json:"name" binding:"required"`
	Credential string `json:"credential" binding:"required"`
}

type loginResponse struct {
	UserID string            `json:"userId"`
	User   domain.UserRecord `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and credential are required")
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.Name, req.School, req.Team, req.Credential)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and credential are required")
		return
	}
	user, err := h.users.Login(c.Request.Context(), req.Name, req.Credential)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{UserID: user.ID, User: user})
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) userDaily(c *gin.Context) {
	day, err := h.day(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	row, err := h.reports.UserDay(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listBanks(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.List())
}

type startRequest struct {
	UserID string      `json:"userId" binding:"required"`
	BankID string      `json:"bankId" binding:"required"`
	Mode   domain.Mode `json:"mode"`
}

type answerRequest struct {
	UserID  string      `json:"userId" binding:"required"`
	Mode    domain.Mode `json:"mode"`
	Locale  string      `json:"locale"`
	Choices []string    `json:"choices"`
	Labels  []string    `json:"labels"`
}

type navigateRequest struct {
	UserID string `json:"userId" binding:"required"`
	Index  *int   `json:"index" binding:"required"`
}

type restartRequest struct {
	UserID string      `json:"userId" binding:"required"`
	Mode   domain.Mode `json:"mode"`
}

func (h *Handler) startAttempt(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId and bankId are required")
		return
	}
	view, err := h.play.Start(c.Request.Context(), req.UserID, req.BankID, modeOrDefault(req.Mode))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAttemptView(view))
}

func (h *Handler) currentAttempt(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}
	view, err := h.play.Current(c.Request.Context(), userID, modeOrDefault(domain.Mode(c.Query("mode"))))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttemptView(view))
}

func (h *Handler) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId is required")
		return
	}
	sub := domain.Submission{Locale: req.Locale, Choices: req.Choices, Labels: req.Labels}
	outcome, err := h.play.Answer(c.Request.Context(), req.UserID, modeOrDefault(req.Mode), sub)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeView(outcome))
}

func (h *Handler) navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId and index are required")
		return
	}
	view, err := h.play.Navigate(c.Request.Context(), req.UserID, *req.Index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttemptView(view))
}

func (h *Handler) restart(c *gin.Context) {
	var req restartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId is required")
		return
	}
	view, err := h.play.Restart(c.Request.Context(), req.UserID, modeOrDefault(req.Mode))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAttemptView(view))
}

func (h *Handler) discard(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}
	if err := h.play.Discard(c.Request.Context(), userID, modeOrDefault(domain.Mode(c.Query("mode")))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) leaderboard(c *gin.Context) {
	scope := domain.Scope(strings.ToLower(c.DefaultQuery("scope", string(domain.ScopeAll))))
	var day string
	if raw := c.Query("date"); raw != "" && !strings.EqualFold(raw, "all") {
		var err error
		if day, err = h.day(raw); err != nil {
			h.fail(c, err)
			return
		}
	}
	lb, err := h.reports.Leaderboard(c.Request.Context(), scope, day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *Handler) dailyStats(c *gin.Context) {
	day, err := h.day(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.reports.DailyStats(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) homeworkDashboard(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		badRequest(c, "topic is required")
		return
	}
	day, err := h.day(c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	switch c.DefaultQuery("view", "student") {
	case "student":
		rows, err := h.homework.Students(ctx, day, topic)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	case "question":
		rows, err := h.homework.Questions(ctx, day, topic)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	default:
		badRequest(c, "view must be student or question")
	}
}

// day validates a date parameter; empty and "today" mean the current day.
func (h *Handler) day(raw string) (string, error) {
	if raw == "" || strings.EqualFold(raw, "today") {
		return h.today(), nil
	}
	return domain.ParseDay(raw)
}

func modeOrDefault(m domain.Mode) domain.Mode {
	if m == "" {
		return domain.ModeChallenge
	}
	return m
}
