package handlers

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.Engine, api *APIHandler, orders *OrderHandler) {
	router.GET("/healthz", api.Health)

	group := router.Group("/api")
	{
		group.POST("/branches", api.CreateBranch)
		group.GET("/branches", api.ListBranches)
		group.GET("/branches/:id", api.GetBranch)
		group.PUT("/branches/:id/gst", api.UpdateBranchGST)

		group.POST("/customers", api.CreateCustomer)
		group.GET("/customers", api.ListCustomers)
		group.GET("/customers/:id", api.GetCustomer)

		group.POST("/staff", api.CreateStaff)
		group.GET("/staff/:id", api.GetStaff)

		group.POST("/orders", orders.CreateOrder)
		group.GET("/orders", orders.ListOrders)
		group.GET("/orders/:id", orders.GetOrder)
		group.GET("/orders/:id/summary", orders.GetOrderSummary)
		group.GET("/orders/:id/items", orders.ListItems)
		group.POST("/orders/:id/items", orders.AddItem)
		group.PUT("/orders/:id/items/:item_id", orders.UpdateItem)
		group.DELETE("/orders/:id/items/:item_id", orders.DeleteItem)
		group.POST("/orders/:id/cancel", orders.CancelOrder)
		group.POST("/orders/:id/refresh-status", orders.RefreshStatus)
		group.POST("/orders/:id/returns", orders.ProcessReturn)
		group.GET("/orders/:id/returns", orders.ListReturns)
		group.GET("/returns/:reference", orders.GetReturn)
	}
}
