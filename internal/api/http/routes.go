package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all transaction service routes
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	transactionAPI := router.Group("/api/v1/transactions")
	{
		transactionAPI.POST("", handlers.CreateTransaction)
		transactionAPI.GET("", handlers.ListTransactions)
		transactionAPI.GET("/:transactionId", handlers.GetTransaction)
		transactionAPI.GET("/:transactionId/events", handlers.GetTransactionEvents)
		transactionAPI.POST("/:transactionId/force-next", handlers.ForceNextStep)
		transactionAPI.POST("/:transactionId/cancel", handlers.CancelTransaction)
		transactionAPI.POST("/:transactionId/user-action-complete", handlers.CompleteUserAction)
		transactionAPI.POST("/:transactionId/acknowledge-warning", handlers.AcknowledgeWarning)
	}

	binAPI := router.Group("/api/v1/bins")
	{
		binAPI.GET("", handlers.ListBins)
		binAPI.POST("/:binId/clear-failure", handlers.ClearBinFailure)
	}

	itemAPI := router.Group("/api/v1/items")
	{
		itemAPI.GET("", handlers.ListItems)
		itemAPI.GET("/:itemId", handlers.GetItem)
	}
}
