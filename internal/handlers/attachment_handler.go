package handlers

import (
	"net/http"

	"github.com/facility_triage/internal/services"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
)

// AttachmentHandler accepts attachment uploads.
type AttachmentHandler struct {
	service services.AttachmentService
}

// NewAttachmentHandler creates an AttachmentHandler.
func NewAttachmentHandler(service services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// UploadAttachment godoc
// @Summary Upload a complaint attachment
// @Description Stores a photo or PDF and returns the URL to pass as attachmentUrl when filing the complaint.
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "JPEG, PNG, WebP or PDF, at most 10 MiB"
// @Success 201 {object} utils.SuccessResponse{data=services.Attachment}
// @Failure 400 {object} utils.APIErrorResponse
// @Failure 401 {object} utils.APIErrorResponse
// @Failure 503 {object} utils.APIErrorResponse
// @Router /attachments [post]
// @Security BearerAuth
func (h *AttachmentHandler) UploadAttachment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondValidationError(c, RuleDetails{Kind: "ValidationError", Rule: "missing_file"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}
	defer file.Close()

	att, err := h.service.Upload(c.Request.Context(), actor, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		respondTriageError(c, err)
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, att, "Attachment stored")
}
