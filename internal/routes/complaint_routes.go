package routes

import (
	"github.com/gin-gonic/gin"
)

// SetupComplaintRoutes registers /complaints, /slots, /attachments and /feed.
// All of them require a token.
func SetupComplaintRoutes(apiV1 *gin.RouterGroup, deps Dependencies) {
	complaints := apiV1.Group("/complaints")
	complaints.Use(deps.JWT)
	{
		complaints.POST("", deps.Complaints.SubmitComplaint)
		complaints.GET("", deps.Complaints.GetComplaints)
		complaints.GET("/:id", deps.Complaints.GetComplaint)
		complaints.GET("/:id/history", deps.Complaints.GetComplaintHistory)
		complaints.POST("/:id/status", deps.Complaints.ChangeStatus)
		complaints.POST("/:id/reopen", deps.Complaints.ReopenComplaint)
		complaints.POST("/:id/assign", deps.Complaints.AssignComplaint)
		complaints.DELETE("/:id", deps.Complaints.DeleteComplaint)
	}

	slots := apiV1.Group("/slots")
	slots.Use(deps.JWT)
	{
		slots.GET("/availability", deps.Complaints.GetSlotAvailability)
	}

	if deps.Attachments != nil {
		apiV1.POST("/attachments", deps.JWT, deps.Attachments.UploadAttachment)
	}

	if deps.Feed != nil {
		apiV1.GET("/feed", deps.JWT, deps.Feed.ServeFeed)
	}
}
