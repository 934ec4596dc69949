package subscriptionapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/timeline"
)

func (h *Handler) listSubscriptions(c *gin.Context) {
	var filter models.SubscriptionFilter
	if v, ok := c.GetQuery("category"); ok {
		filter.Category = &v
	}
	if v, ok := c.GetQuery("is_active"); ok {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(c, "listSubscriptions", badRequest("invalid is_active"))
			return
		}
		filter.IsActive = &active
	}
	subs, err := h.Subscriptions.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, "listSubscriptions", err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) createSubscription(c *gin.Context) {
	var input models.NewSubscription
	if err := c.ShouldBindJSON(&input); err != nil {
		h.writeError(c, "createSubscription", badRequest("invalid request body"))
		return
	}
	sub, err := h.Subscriptions.Create(c.Request.Context(), &input)
	if err != nil {
		h.writeError(c, "createSubscription", err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) getSubscription(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "getSubscription", err)
		return
	}
	sub, err := h.Subscriptions.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "getSubscription", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) updateSubscription(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "updateSubscription", err)
		return
	}
	var input models.NewSubscription
	if err := c.ShouldBindJSON(&input); err != nil {
		h.writeError(c, "updateSubscription", badRequest("invalid request body"))
		return
	}
	sub, err := h.Subscriptions.Update(c.Request.Context(), id, &input)
	if err != nil {
		h.writeError(c, "updateSubscription", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) deleteSubscription(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "deleteSubscription", err)
		return
	}
	sub, err := h.Subscriptions.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "deleteSubscription", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) listExpenses(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "listExpenses", err)
		return
	}
	expenses, err := h.Subscriptions.ListExpenses(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "listExpenses", err)
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	c.JSON(http.StatusOK, expenses)
}

func (h *Handler) expenseSummary(c *gin.Context) {
	current := timeline.MonthOf(h.now())
	from, to, err := timeline.MonthRange(c.Query("startMonth"), c.Query("endMonth"), timeline.NewMonth(current.Year(), 1), current)
	if err != nil {
		h.writeError(c, "expenseSummary", badRequest(err.Error()))
		return
	}
	summary, err := h.Subscriptions.ExpenseSummary(c.Request.Context(), from.String(), to.String())
	if err != nil {
		h.writeError(c, "expenseSummary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) outboxStatus(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "outboxStatus")
	if !ok {
		return
	}
	status, err := h.Subscriptions.OutboxStatus(c.Request.Context(), id, month.String())
	if err != nil {
		h.writeError(c, "outboxStatus", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) replayOutbox(c *gin.Context) {
	recordId, err := pathInt(c, "recordId")
	if err != nil {
		h.writeError(c, "replayOutbox", err)
		return
	}
	status, err := h.Subscriptions.ReplayOutbox(c.Request.Context(), recordId)
	if err != nil {
		h.writeError(c, "replayOutbox", err)
		return
	}
	c.JSON(http.StatusOK, status)
}
