package subscriptionapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cashflow_backend/config"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/models/reports"
	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/mmdatafocus/cashflow_backend/utils"
	"github.com/sirupsen/logrus"
)

const businessIdHeader = "X-Business-Id"

// SubscriptionService is the subscription CRUD surface the handlers need.
type SubscriptionService interface {
	Create(ctx context.Context, input *models.NewSubscription) (*models.Subscription, error)
	Update(ctx context.Context, id int, input *models.NewSubscription) (*models.Subscription, error)
	Delete(ctx context.Context, id int) (*models.Subscription, error)
	Get(ctx context.Context, id int) (*models.Subscription, error)
	List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	ListExpenses(ctx context.Context, subscriptionId int) ([]*models.Expense, error)
	ExpenseSummary(ctx context.Context, fromMonth, toMonth string) (*reports.SubscriptionExpenseSummary, error)
	OutboxStatus(ctx context.Context, subscriptionId int, month string) (*models.OutboxStatus, error)
	ReplayOutbox(ctx context.Context, recordId int) (*models.OutboxStatus, error)
}

// ModelSubscriptions serves SubscriptionService from the database models.
type ModelSubscriptions struct{}

func (ModelSubscriptions) Create(ctx context.Context, input *models.NewSubscription) (*models.Subscription, error) {
	return models.CreateSubscription(ctx, input)
}

func (ModelSubscriptions) Update(ctx context.Context, id int, input *models.NewSubscription) (*models.Subscription, error) {
	return models.UpdateSubscription(ctx, id, input)
}

func (ModelSubscriptions) Delete(ctx context.Context, id int) (*models.Subscription, error) {
	return models.DeleteSubscription(ctx, id)
}

func (ModelSubscriptions) Get(ctx context.Context, id int) (*models.Subscription, error) {
	return models.GetSubscription(ctx, id)
}

func (ModelSubscriptions) List(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	return models.ListSubscriptions(ctx, filter)
}

func (ModelSubscriptions) ListExpenses(ctx context.Context, subscriptionId int) ([]*models.Expense, error) {
	return models.ListSubscriptionExpenses(ctx, subscriptionId)
}

func (ModelSubscriptions) ExpenseSummary(ctx context.Context, fromMonth, toMonth string) (*reports.SubscriptionExpenseSummary, error) {
	return reports.GetSubscriptionExpenseSummary(ctx, fromMonth, toMonth)
}

func (ModelSubscriptions) OutboxStatus(ctx context.Context, subscriptionId int, month string) (*models.OutboxStatus, error) {
	return models.GetOccurrenceOutboxStatus(ctx, subscriptionId, month)
}

func (ModelSubscriptions) ReplayOutbox(ctx context.Context, recordId int) (*models.OutboxStatus, error) {
	return models.ReplayOutboxRecord(ctx, recordId)
}

type Handler struct {
	Engine        *timeline.Engine
	Subscriptions SubscriptionService
	Logger        *logrus.Logger
	// HorizonMonths bounds generate-projections when no endMonth is given.
	HorizonMonths int
}

func NewHandler(engine *timeline.Engine, subscriptions SubscriptionService, logger *logrus.Logger) *Handler {
	if subscriptions == nil {
		subscriptions = ModelSubscriptions{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Handler{
		Engine:        engine,
		Subscriptions: subscriptions,
		Logger:        logger,
		HorizonMonths: config.TimelineHorizonMonths(),
	}
}

func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api", requireBusiness())

	api.GET("/subscriptions", h.listSubscriptions)
	api.POST("/subscriptions", h.createSubscription)
	api.GET("/subscriptions/:id", h.getSubscription)
	api.PUT("/subscriptions/:id", h.updateSubscription)
	api.DELETE("/subscriptions/:id", h.deleteSubscription)
	api.GET("/subscriptions/:id/expenses", h.listExpenses)

	api.GET("/subscriptions/:id/timeline", h.getTimeline)
	api.GET("/subscriptions/:id/timeline/export", h.exportTimeline)
	api.GET("/subscriptions/:id/projections", h.listProjections)
	api.POST("/subscriptions/:id/generate-projections", h.generateProjections)

	occ := api.Group("/subscriptions/:id/occurrences/:month")
	occ.GET("", h.getOccurrence)
	occ.DELETE("", h.deleteOccurrence)
	occ.POST("/payments", h.addPayment)
	occ.DELETE("/payments/:paymentId", h.deletePayment)
	occ.POST("/mark-paid", h.markPaid)
	occ.POST("/mark-unpaid", h.markUnpaid)
	occ.POST("/resync", h.resync)
	occ.GET("/outbox", h.outboxStatus)
	api.POST("/outbox/:recordId/replay", h.replayOutbox)

	api.GET("/timeline", h.businessTimeline)
	api.GET("/projections/:year", h.projectYear)
	api.GET("/reports/subscription-expenses", h.expenseSummary)
}

// requireBusiness puts the tenant on the request context; every route
// below it is business-scoped.
func requireBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := strings.TrimSpace(c.Query("business_id"))
		if businessId == "" {
			businessId = strings.TrimSpace(c.GetHeader(businessIdHeader))
		}
		if businessId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": utils.ErrorBusinessRequired.Error()})
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

func statusOf(err error) int {
	var br *badRequestError
	switch {
	case errors.As(err, &br),
		timeline.IsValidationError(err),
		errors.Is(err, utils.ErrorInvalidInput),
		errors.Is(err, utils.ErrorBusinessRequired):
		return http.StatusBadRequest
	case timeline.IsNotFound(err), errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorLockBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, funcName string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		config.LogError(h.Logger, "subscriptionapi", funcName, c.FullPath(), c.Params, err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathInt(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, badRequest("invalid " + name)
	}
	return v, nil
}

func pathMonth(c *gin.Context) (timeline.Month, error) {
	m, err := timeline.ParseMonth(c.Param("month"))
	if err != nil {
		return 0, badRequest(err.Error())
	}
	return m, nil
}

func (h *Handler) now() time.Time {
	if h.Engine != nil && h.Engine.Clock != nil {
		return h.Engine.Clock.Now()
	}
	return time.Now()
}

// timelineRange defaults to the subscription's start month through its end
// month, or the current month when it is open-ended.
func (h *Handler) timelineRange(c *gin.Context, subscriptionId int) (timeline.Month, timeline.Month, error) {
	sub, err := h.Engine.Store.GetSubscription(c.Request.Context(), subscriptionId)
	if err != nil {
		return 0, 0, err
	}
	defFrom, defTo := timeline.DefaultRange(sub, h.now())
	from, to, err := timeline.MonthRange(c.Query("startMonth"), c.Query("endMonth"), defFrom, defTo)
	if err != nil {
		return 0, 0, badRequest(err.Error())
	}
	return from, to, nil
}

// horizonRange defaults to the current month through HorizonMonths ahead.
func (h *Handler) horizonRange(c *gin.Context) (timeline.Month, timeline.Month, error) {
	current := timeline.MonthOf(h.now())
	horizon := h.HorizonMonths
	if horizon <= 0 {
		horizon = 12
	}
	from, to, err := timeline.MonthRange(c.Query("startMonth"), c.Query("endMonth"), current, current.AddMonths(horizon))
	if err != nil {
		return 0, 0, badRequest(err.Error())
	}
	return from, to, nil
}
