package handlers

import (
	"net/http"

	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/services"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
)

// ComplaintHandler exposes the triage service over HTTP.
type ComplaintHandler struct {
	service services.TriageService
}

// NewComplaintHandler creates a ComplaintHandler.
func NewComplaintHandler(service services.TriageService) *ComplaintHandler {
	return &ComplaintHandler{service: service}
}

// SubmitComplaintPayload is the body of a new complaint.
type SubmitComplaintPayload struct {
	Subject       string  `json:"subject" binding:"required,max=200"`
	Description   string  `json:"description" binding:"required,max=5000"`
	Category      string  `json:"category" binding:"required,complaint_category"`
	Location      *string `json:"location" binding:"omitempty,max=255"`
	AttachmentURL *string `json:"attachmentUrl" binding:"omitempty,url,max=1024"`
	SlotDate      string  `json:"slotDate"`  // YYYY-MM-DD, required for students
	SlotLabel     string  `json:"slotLabel"` // one of the slot catalog labels
}

// ComplaintDetail is a complaint plus the statuses the caller may move it to.
type ComplaintDetail struct {
	models.Complaint
	AllowedTransitions []models.Status `json:"allowedTransitions"`
}

// PagedComplaintsData is the list response.
type PagedComplaintsData struct {
	Items      []models.Complaint `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}

// StatusChangePayload requests a status transition.
type StatusChangePayload struct {
	Status string `json:"status" binding:"required,oneof=Pending InProgress Assigned Resolved Reopened"`
	Note   string `json:"note" binding:"max=2000"`
}

// ReopenPayload reopens a resolved complaint.
type ReopenPayload struct {
	Note string `json:"note" binding:"max=2000"`
}

// AssignPayload hands a complaint to a worker.
type AssignPayload struct {
	AssignedTo string `json:"assignedTo" binding:"required,max=255"`
	Supervisor string `json:"supervisor" binding:"max=255"`
	Note       string `json:"note" binding:"max=2000"`
}

// SubmitComplaint godoc
// @Summary File a complaint
// @Description Classifies the complaint, checks slot eligibility and reserves the slot atomically. Students must book a slot; staff may not.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param complaint body SubmitComplaintPayload true "Complaint (slot date format YYYY-MM-DD)"
// @Success 201 {object} utils.SuccessResponse{data=models.Complaint} "Created complaint"
// @Failure 400 {object} utils.APIErrorResponse "Missing or invalid field"
// @Failure 401 {object} utils.APIErrorResponse "Not authenticated"
// @Failure 403 {object} utils.APIErrorResponse "Role may not file complaints"
// @Failure 409 {object} utils.APIErrorResponse "Slot already reserved (rule slot_taken)"
// @Failure 422 {object} utils.APIErrorResponse "Outside the eligibility window"
// @Failure 503 {object} utils.APIErrorResponse "Store unavailable, safe to retry"
// @Router /complaints [post]
// @Security BearerAuth
func (h *ComplaintHandler) SubmitComplaint(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload SubmitComplaintPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, utils.ParseErrors(err))
		return
	}

	slotDate := payload.SlotDate
	if slotDate != "" {
		normalized, err := utils.NormalizeDate(slotDate)
		if err != nil {
			utils.RespondValidationError(c, RuleDetails{Kind: "ValidationError", Rule: "invalid_slot_date"})
			return
		}
		slotDate = normalized
	}

	complaint, err := h.service.Submit(c.Request.Context(), actor, services.SubmitRequest{
		Subject:       payload.Subject,
		Description:   payload.Description,
		Category:      payload.Category,
		Location:      payload.Location,
		AttachmentURL: payload.AttachmentURL,
		SlotDate:      slotDate,
		SlotLabel:     payload.SlotLabel,
	})
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, complaint, "Complaint submitted")
}

// GetComplaints godoc
// @Summary List complaints
// @Description Students see their own complaints; privileged roles see all. Newest first unless sorted.
// @Tags Complaints
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Param sortBy query string false "createdAt, updatedAt, priority, status or slotDate"
// @Param sortOrder query string false "asc or desc"
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param priority query string false "Priority filter (High, Medium, Low)"
// @Param assignedTo query string false "Assignee filter"
// @Param slotDate query string false "Slot date filter (YYYY-MM-DD)"
// @Param mine query bool false "Only complaints filed by the caller"
// @Success 200 {object} utils.SuccessResponse{data=PagedComplaintsData}
// @Failure 400 {object} utils.APIErrorResponse
// @Failure 401 {object} utils.APIErrorResponse
// @Router /complaints [get]
// @Security BearerAuth
func (h *ComplaintHandler) GetComplaints(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	type listQuery struct {
		Page       int    `form:"page,default=1"`
		Limit      int    `form:"limit,default=10"`
		SortBy     string `form:"sortBy"`
		SortOrder  string `form:"sortOrder,default=desc"`
		Status     string `form:"status"`
		Category   string `form:"category"`
		Priority   string `form:"priority"`
		AssignedTo string `form:"assignedTo"`
		SlotDate   string `form:"slotDate"`
		Mine       bool   `form:"mine"`
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}

	items, total, err := h.service.List(c.Request.Context(), actor, services.ComplaintQuery{
		Status:     q.Status,
		Category:   q.Category,
		AssignedTo: q.AssignedTo,
		Priority:   q.Priority,
		SlotDate:   q.SlotDate,
		Mine:       q.Mine,
		Page:       q.Page,
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	})
	if err != nil {
		respondTriageError(c, err)
		return
	}
	if items == nil {
		items = []models.Complaint{}
	}
	utils.RespondSuccess(c, http.StatusOK, PagedComplaintsData{
		Items:      items,
		Pagination: newPagination(total, q.Page, q.Limit),
	}, "")
}

// GetComplaint godoc
// @Summary Get one complaint
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} utils.SuccessResponse{data=ComplaintDetail}
// @Failure 401 {object} utils.APIErrorResponse
// @Failure 404 {object} utils.APIErrorResponse
// @Router /complaints/{id} [get]
// @Security BearerAuth
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	complaint, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondTriageError(c, err)
		return
	}
	allowed := h.service.AllowedTransitions(complaint, actor)
	if allowed == nil {
		allowed = []models.Status{}
	}
	utils.RespondSuccess(c, http.StatusOK, ComplaintDetail{Complaint: *complaint, AllowedTransitions: allowed}, "")
}

// GetComplaintHistory godoc
// @Summary Status history of a complaint
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} utils.SuccessResponse{data=[]models.ComplaintStatusHistory}
// @Failure 401 {object} utils.APIErrorResponse
// @Failure 404 {object} utils.APIErrorResponse
// @Router /complaints/{id}/history [get]
// @Security BearerAuth
func (h *ComplaintHandler) GetComplaintHistory(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	rows, err := h.service.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondTriageError(c, err)
		return
	}
	if rows == nil {
		rows = []models.ComplaintStatusHistory{}
	}
	utils.RespondSuccess(c, http.StatusOK, rows, "")
}

// ChangeStatus godoc
// @Summary Move a complaint to another status
// @Description Applies the lifecycle transition table. Use /assign to assign and /reopen to reopen.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param change body StatusChangePayload true "Target status"
// @Success 200 {object} utils.SuccessResponse{data=models.Complaint}
// @Failure 400 {object} utils.APIErrorResponse
// @Failure 404 {object} utils.APIErrorResponse
// @Failure 422 {object} utils.APIErrorResponse "Illegal transition or actor"
// @Router /complaints/{id}/status [post]
// @Security BearerAuth
func (h *ComplaintHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload StatusChangePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, utils.ParseErrors(err))
		return
	}
	updated, err := h.service.Transition(c.Request.Context(), actor, c.Param("id"), models.Status(payload.Status), payload.Note)
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, updated, "Status updated")
}

// ReopenComplaint godoc
// @Summary Reopen a resolved complaint
// @Description Only the original submitter may reopen, and a note is required.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param reopen body ReopenPayload true "Reason"
// @Success 200 {object} utils.SuccessResponse{data=models.Complaint}
// @Failure 400 {object} utils.APIErrorResponse "Missing note"
// @Failure 404 {object} utils.APIErrorResponse
// @Failure 422 {object} utils.APIErrorResponse "Not resolved or not the submitter"
// @Router /complaints/{id}/reopen [post]
// @Security BearerAuth
func (h *ComplaintHandler) ReopenComplaint(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload ReopenPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, utils.ParseErrors(err))
		return
	}
	updated, err := h.service.Reopen(c.Request.Context(), actor, c.Param("id"), payload.Note)
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, updated, "Complaint reopened")
}

// AssignComplaint godoc
// @Summary Assign or reassign a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param assignment body AssignPayload true "Assignee"
// @Success 200 {object} utils.SuccessResponse{data=models.Complaint}
// @Failure 400 {object} utils.APIErrorResponse
// @Failure 404 {object} utils.APIErrorResponse
// @Failure 422 {object} utils.APIErrorResponse
// @Router /complaints/{id}/assign [post]
// @Security BearerAuth
func (h *ComplaintHandler) AssignComplaint(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload AssignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondValidationError(c, utils.ParseErrors(err))
		return
	}
	updated, err := h.service.Assign(c.Request.Context(), actor, c.Param("id"), services.AssignRequest{
		AssignedTo: payload.AssignedTo,
		Supervisor: payload.Supervisor,
		Note:       payload.Note,
	})
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, updated, "Complaint assigned")
}

// DeleteComplaint godoc
// @Summary Delete a complaint
// @Description Admin only. Removes the complaint, its history and releases its slot.
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 403 {object} utils.APIErrorResponse
// @Failure 404 {object} utils.APIErrorResponse
// @Router /complaints/{id} [delete]
// @Security BearerAuth
func (h *ComplaintHandler) DeleteComplaint(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, nil, "Complaint deleted")
}

// GetSlotAvailability godoc
// @Summary Slot availability for a date
// @Description Lists every catalog slot with its booking state and whether the given scheduling priority may book it now.
// @Tags Slots
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param priority query string false "High or Normal" default(Normal)
// @Success 200 {object} utils.SuccessResponse{data=services.Availability}
// @Failure 400 {object} utils.APIErrorResponse
// @Router /slots/availability [get]
// @Security BearerAuth
func (h *ComplaintHandler) GetSlotAvailability(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	date, err := utils.NormalizeDate(c.Query("date"))
	if err != nil {
		utils.RespondValidationError(c, RuleDetails{Kind: "ValidationError", Rule: "invalid_slot_date"})
		return
	}
	av, err := h.service.Availability(c.Request.Context(), actor, date, models.Priority(c.DefaultQuery("priority", string(models.PriorityNormal))))
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusOK, av, "")
}
