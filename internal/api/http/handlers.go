package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartcab-platform/transaction-service/internal/application"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
	"github.com/smartcab-platform/transaction-service/pkg/middleware"
)

// Handlers contains HTTP handlers for the transaction endpoints
type Handlers struct {
	transactions *application.TransactionApplicationService
	bins         *application.BinApplicationService
	items        *application.ItemApplicationService
	logger       *logging.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	transactions *application.TransactionApplicationService,
	bins *application.BinApplicationService,
	items *application.ItemApplicationService,
	logger *logging.Logger,
) *Handlers {
	return &Handlers{
		transactions: transactions,
		bins:         bins,
		items:        items,
		logger:       logger,
	}
}

type createTransactionRequest struct {
	Type   string                 `json:"type" binding:"required,transaction_type"`
	UserID string                 `json:"userId" binding:"required,safe_string,max=64"`
	Items  []requestedItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
}

type requestedItemRequest struct {
	ItemID   string `json:"itemId" binding:"required,item_id"`
	Quantity int    `json:"quantity" binding:"required,gte=1"`
}

type forceNextRequest struct {
	IsNextRequestItem bool   `json:"isNextRequestItem"`
	Operator          string `json:"operator" binding:"omitempty,safe_string,max=64"`
}

type cancelTransactionRequest struct {
	Reason string `json:"reason" binding:"omitempty,safe_string,max=256"`
}

type userActionRequest struct {
	BinID string `json:"binId" binding:"required,bin_id"`
}

type acknowledgeWarningRequest struct {
	IsCloseWarningPopup bool `json:"isCloseWarningPopup"`
	IsNextRequestItem   bool `json:"isNextRequestItem"`
}

// CreateTransaction handles POST /api/v1/transactions
func (h *Handlers) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.AbortWithAppError(c, appErr)
		return
	}

	cmd := application.CreateTransactionCommand{
		Type:   req.Type,
		UserID: req.UserID,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, application.RequestedItemInput{
			ItemID:   item.ItemID,
			Quantity: item.Quantity,
		})
	}
	if cmd.UserID == "" {
		cmd.UserID = middleware.GetUserID(c)
	}

	result, err := h.transactions.PlanAndStart(c.Request.Context(), cmd)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

// GetTransaction handles GET /api/v1/transactions/:transactionId
func (h *Handlers) GetTransaction(c *gin.Context) {
	query := application.GetTransactionQuery{TransactionID: c.Param("transactionId")}

	result, err := h.transactions.GetTransaction(c.Request.Context(), query)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListTransactions handles GET /api/v1/transactions
func (h *Handlers) ListTransactions(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	query := application.ListTransactionsQuery{
		Status: c.Query("status"),
		Active: c.Query("active") == "true",
		Limit:  limit,
	}

	result, err := h.transactions.ListTransactions(c.Request.Context(), query)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "count": len(result)})
}

// GetTransactionEvents handles GET /api/v1/transactions/:transactionId/events
func (h *Handlers) GetTransactionEvents(c *gin.Context) {
	query := application.GetTransactionEventsQuery{TransactionID: c.Param("transactionId")}

	result, err := h.transactions.GetTransactionEvents(c.Request.Context(), query)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "count": len(result)})
}

// ForceNextStep handles POST /api/v1/transactions/:transactionId/force-next
func (h *Handlers) ForceNextStep(c *gin.Context) {
	var req forceNextRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.AbortWithAppError(c, appErr)
		return
	}

	operator := req.Operator
	if operator == "" {
		operator = middleware.GetUserID(c)
	}

	cmd := application.ForceNextStepCommand{
		TransactionID:     c.Param("transactionId"),
		IsNextRequestItem: req.IsNextRequestItem,
		Operator:          operator,
	}

	if err := h.transactions.ForceNextStep(c.Request.Context(), cmd); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// CancelTransaction handles POST /api/v1/transactions/:transactionId/cancel
func (h *Handlers) CancelTransaction(c *gin.Context) {
	var req cancelTransactionRequest
	if c.Request.ContentLength > 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.AbortWithAppError(c, appErr)
			return
		}
	}

	cmd := application.CancelTransactionCommand{
		TransactionID: c.Param("transactionId"),
		Reason:        req.Reason,
	}

	if err := h.transactions.CancelTransaction(c.Request.Context(), cmd); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// CompleteUserAction handles POST /api/v1/transactions/:transactionId/user-action-complete
func (h *Handlers) CompleteUserAction(c *gin.Context) {
	var req userActionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.AbortWithAppError(c, appErr)
		return
	}

	cmd := application.CompleteUserActionCommand{
		TransactionID: c.Param("transactionId"),
		BinID:         req.BinID,
	}

	if err := h.transactions.CompleteUserAction(c.Request.Context(), cmd); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// AcknowledgeWarning handles POST /api/v1/transactions/:transactionId/acknowledge-warning
func (h *Handlers) AcknowledgeWarning(c *gin.Context) {
	var req acknowledgeWarningRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.AbortWithAppError(c, appErr)
		return
	}

	cmd := application.AcknowledgeWarningCommand{
		TransactionID:       c.Param("transactionId"),
		IsCloseWarningPopup: req.IsCloseWarningPopup,
		IsNextRequestItem:   req.IsNextRequestItem,
	}

	if err := h.transactions.AcknowledgeWarning(c.Request.Context(), cmd); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// ListBins handles GET /api/v1/bins
func (h *Handlers) ListBins(c *gin.Context) {
	query := application.ListBinsQuery{CabinetID: c.Query("cabinetId")}

	result, err := h.bins.ListBins(c.Request.Context(), query)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "count": len(result)})
}

// GetItem handles GET /api/v1/items/:itemId
func (h *Handlers) GetItem(c *gin.Context) {
	result, err := h.items.GetItem(c.Request.Context(), c.Param("itemId"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListItems handles GET /api/v1/items
func (h *Handlers) ListItems(c *gin.Context) {
	result, err := h.items.ListItems(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "count": len(result)})
}

// ClearBinFailure handles POST /api/v1/bins/:binId/clear-failure
func (h *Handlers) ClearBinFailure(c *gin.Context) {
	cmd := application.ClearBinFailureCommand{BinID: c.Param("binId")}

	result, err := h.bins.ClearBinFailure(c.Request.Context(), cmd)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
