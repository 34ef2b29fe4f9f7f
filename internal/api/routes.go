package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kimmove-blip/Stock-sub000/internal/engine"
)

// RegisterRoutes mounts the local intent API on the router.
func RegisterRoutes(router *gin.Engine, coord *engine.Coordinator, decisions DecisionReader, lister SuggestionLister) {
	h := NewHandler(coord, decisions, lister)

	api := router.Group("/api")
	{
		api.GET("/suggestions", h.ListSuggestions)
		api.PUT("/suggestions/:id/ticket", h.EditTicket)
		api.POST("/suggestions/:id/approve", h.Approve)
		api.POST("/suggestions/:id/reject", h.Reject)

		api.GET("/adjustment", h.GetAdjustment)
		api.POST("/adjustment/accept", h.AcceptAdjustment)
		api.POST("/adjustment/discard", h.DiscardAdjustment)

		api.POST("/refresh", h.Refresh)
		api.GET("/notice", h.GetNotice)

		api.GET("/account", h.GetAccount)
		api.GET("/orders/pending", h.ListPendingOrders)
		api.GET("/decisions", h.ListDecisions)
	}
}
