package subscriptionapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cashflow_backend/models"
	"github.com/mmdatafocus/cashflow_backend/models/reports"
	"github.com/mmdatafocus/cashflow_backend/timeline"
	"github.com/mmdatafocus/cashflow_backend/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AddPaymentRequest struct {
	PaidDate      string       `json:"paid_date" validate:"required,datetime=2006-01-02"`
	Amount        utils.Amount `json:"amount"`
	PaymentMethod string       `json:"payment_method" validate:"max=50"`
	Notes         string       `json:"notes"`
}

// MarkPaidRequest defaults PaidDate to today.
type MarkPaidRequest struct {
	PaidDate      string `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod string `json:"payment_method" validate:"max=50"`
	Notes         string `json:"notes"`
}

type MarkUnpaidRequest struct {
	DeletePayments *bool `json:"delete_payments"`
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, dest any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

func validateRequest(v any) error {
	if err := utils.ValidateStruct(v); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, badRequest("invalid paid_date")
	}
	return t, nil
}

func (h *Handler) getTimeline(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "getTimeline", err)
		return
	}
	from, to, err := h.timelineRange(c, id)
	if err != nil {
		h.writeError(c, "getTimeline", err)
		return
	}
	tl, err := h.Engine.Timeline(c.Request.Context(), id, from, to)
	if err != nil {
		h.writeError(c, "getTimeline", err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (h *Handler) exportTimeline(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "exportTimeline", err)
		return
	}
	from, to, err := h.timelineRange(c, id)
	if err != nil {
		h.writeError(c, "exportTimeline", err)
		return
	}
	tl, err := h.Engine.Timeline(c.Request.Context(), id, from, to)
	if err != nil {
		h.writeError(c, "exportTimeline", err)
		return
	}
	f, err := reports.SubscriptionTimelineWorkbook(tl)
	if err != nil {
		h.writeError(c, "exportTimeline", err)
		return
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		h.writeError(c, "exportTimeline", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+reports.TimelineFileName(tl)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) listProjections(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "listProjections", err)
		return
	}
	from, to, err := h.timelineRange(c, id)
	if err != nil {
		h.writeError(c, "listProjections", err)
		return
	}
	rows, err := h.Engine.Store.ListProjectionEntries(c.Request.Context(), id, from.String(), to.String())
	if err != nil {
		h.writeError(c, "listProjections", err)
		return
	}
	if rows == nil {
		rows = []*models.SubscriptionProjectionEntry{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) generateProjections(c *gin.Context) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, "generateProjections", err)
		return
	}
	from, to, err := h.horizonRange(c)
	if err != nil {
		h.writeError(c, "generateProjections", err)
		return
	}
	res, err := h.Engine.GenerateProjections(c.Request.Context(), id, from, to)
	if err != nil {
		h.writeError(c, "generateProjections", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) getOccurrence(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "getOccurrence")
	if !ok {
		return
	}
	view, err := h.Engine.Occurrence(c.Request.Context(), id, month)
	if err != nil {
		h.writeError(c, "getOccurrence", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addPayment(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "addPayment")
	if !ok {
		return
	}
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, "addPayment", badRequest("invalid request body"))
		return
	}
	if err := validateRequest(&req); err != nil {
		h.writeError(c, "addPayment", err)
		return
	}
	paidDate, err := parseDate(req.PaidDate)
	if err != nil {
		h.writeError(c, "addPayment", err)
		return
	}
	view, err := h.Engine.AddPayment(c.Request.Context(), timeline.AddPaymentInput{
		SubscriptionId: id,
		Month:          month,
		PaidDate:       paidDate,
		Amount:         req.Amount.Decimal,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(c, "addPayment", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) deletePayment(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "deletePayment")
	if !ok {
		return
	}
	paymentId, err := pathInt(c, "paymentId")
	if err != nil {
		h.writeError(c, "deletePayment", err)
		return
	}
	view, err := h.Engine.DeletePayment(c.Request.Context(), timeline.DeletePaymentInput{
		SubscriptionId: id,
		Month:          month,
		PaymentId:      paymentId,
	})
	if err != nil {
		h.writeError(c, "deletePayment", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) markPaid(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "markPaid")
	if !ok {
		return
	}
	var req MarkPaidRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeError(c, "markPaid", err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.writeError(c, "markPaid", err)
		return
	}
	paidDate := h.now()
	if req.PaidDate != "" {
		d, err := parseDate(req.PaidDate)
		if err != nil {
			h.writeError(c, "markPaid", err)
			return
		}
		paidDate = d
	}
	view, err := h.Engine.MarkPaid(c.Request.Context(), timeline.MarkPaidInput{
		SubscriptionId: id,
		Month:          month,
		PaidDate:       paidDate,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(c, "markPaid", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) markUnpaid(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "markUnpaid")
	if !ok {
		return
	}
	var req MarkUnpaidRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.writeError(c, "markUnpaid", err)
		return
	}
	if v, ok := c.GetQuery("delete_payments"); ok && req.DeletePayments == nil {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(c, "markUnpaid", badRequest("invalid delete_payments"))
			return
		}
		req.DeletePayments = &b
	}
	view, err := h.Engine.MarkUnpaid(c.Request.Context(), timeline.MarkUnpaidInput{
		SubscriptionId: id,
		Month:          month,
		DeletePayments: req.DeletePayments,
	})
	if err != nil {
		h.writeError(c, "markUnpaid", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) resync(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "resync")
	if !ok {
		return
	}
	view, err := h.Engine.Resync(c.Request.Context(), id, month)
	if err != nil {
		h.writeError(c, "resync", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) deleteOccurrence(c *gin.Context) {
	id, month, ok := h.occurrencePath(c, "deleteOccurrence")
	if !ok {
		return
	}
	if err := h.Engine.DeleteOccurrence(c.Request.Context(), id, month); err != nil {
		h.writeError(c, "deleteOccurrence", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// businessTimeline reconciles all active subscriptions over a month range,
// by default the current month through the horizon.
func (h *Handler) businessTimeline(c *gin.Context) {
	from, to, err := h.horizonRange(c)
	if err != nil {
		h.writeError(c, "businessTimeline", err)
		return
	}
	tl, err := h.Engine.BusinessTimeline(c.Request.Context(), from, to)
	if err != nil {
		h.writeError(c, "businessTimeline", err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (h *Handler) projectYear(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1900 || year > 9999 {
		h.writeError(c, "projectYear", badRequest("invalid year"))
		return
	}
	occs, err := h.Engine.ProjectYear(c.Request.Context(), year)
	if err != nil {
		h.writeError(c, "projectYear", err)
		return
	}
	if occs == nil {
		occs = []timeline.Occurrence{}
	}
	c.JSON(http.StatusOK, occs)
}

func (h *Handler) occurrencePath(c *gin.Context, funcName string) (int, timeline.Month, bool) {
	id, err := pathInt(c, "id")
	if err != nil {
		h.writeError(c, funcName, err)
		return 0, 0, false
	}
	month, err := pathMonth(c)
	if err != nil {
		h.writeError(c, funcName, err)
		return 0, 0, false
	}
	return id, month, true
}
