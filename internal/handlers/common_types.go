package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/facility_triage/internal/auth"
	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/pkg/utils"
	"github.com/gin-gonic/gin"
)

// PaginationInfo is the pagination block of list responses.
type PaginationInfo struct {
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

func newPagination(total int64, page, limit int) PaginationInfo {
	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return PaginationInfo{TotalItems: total, TotalPages: totalPages, CurrentPage: page, PageSize: limit}
}

// RuleDetails is the details block of a triage rejection.
type RuleDetails struct {
	Kind string `json:"kind"`
	Rule string `json:"rule,omitempty"`
}

// kindStatus maps each error kind to its HTTP status, in match order.
var kindStatus = []struct {
	kind   error
	name   string
	status int
}{
	{domainerr.ErrValidation, "ValidationError", http.StatusBadRequest},
	{domainerr.ErrForbidden, "Forbidden", http.StatusForbidden},
	{domainerr.ErrNotFound, "NotFound", http.StatusNotFound},
	{domainerr.ErrSchedulingConflict, "SchedulingConflict", http.StatusConflict},
	{domainerr.ErrOutOfEligibilityWindow, "OutOfEligibilityWindow", http.StatusUnprocessableEntity},
	{domainerr.ErrInvalidTransition, "InvalidTransition", http.StatusUnprocessableEntity},
	{domainerr.ErrPersistenceFailure, "PersistenceFailure", http.StatusServiceUnavailable},
}

// respondTriageError writes err with the status of its kind and names the
// failing rule.
func respondTriageError(c *gin.Context, err error) {
	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			if ks.kind == domainerr.ErrPersistenceFailure {
				log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
				utils.RespondAPIError(c, ks.status, "The complaint store is temporarily unavailable, please retry", RuleDetails{Kind: ks.name})
				return
			}
			details := RuleDetails{Kind: ks.name, Rule: domainerr.Rule(err)}
			if ks.status == http.StatusConflict {
				utils.RespondConflictError(c, err.Error(), details)
				return
			}
			utils.RespondAPIError(c, ks.status, err.Error(), details)
			return
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		utils.RespondAPIError(c, http.StatusServiceUnavailable, "Request cancelled before completion", nil)
		return
	}
	log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	utils.RespondInternalServerError(c, "Internal server error")
}

// actorOrAbort reads the caller identity set by the JWT middleware.
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		utils.RespondUnauthorizedError(c)
	}
	return actor, ok
}
