package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"storefront-system/internal/domain"
	"storefront-system/internal/gateway/middleware"
)

const requestTimeout = 10 * time.Second

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int64 `json:"total_pages"`
}

func newPageMeta(page, pageSize int, total int64) PageMeta {
	meta := PageMeta{Page: page, PageSize: pageSize, TotalCount: total}
	if pageSize > 0 {
		meta.TotalPages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return meta
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// --- Helper for handling service errors ---
func handleServiceError(c *gin.Context, err error) {
	de, ok := domain.AsError(err)
	if !ok || de.Kind == domain.KindInternal {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse("Internal server error"))
		return
	}

	resp := errorResponse(de.Message)
	if len(de.Fields) > 0 {
		resp.Errors = de.Fields
	}
	c.AbortWithStatusJSON(statusForKind(de.Kind), resp)
}

func handleBindError(c *gin.Context, err error) {
	resp := errorResponse("Invalid request format")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe))
		}
		resp.Errors = fields
	} else {
		resp.Errors = map[string][]string{"non_field_errors": {err.Error()}}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Ensure this field has at least " + fe.Param() + " characters."
	case "gt":
		return "Ensure this value is greater than " + fe.Param() + "."
	case "gte":
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "lte":
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	case "oneof":
		return "\"" + toString(fe.Value()) + "\" is not a valid choice."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "url":
		return "Enter a valid URL."
	case "numeric":
		return "A valid number is required."
	case "datetime":
		return "Date has wrong format. Use YYYY-MM-DD."
	case "currency":
		return "Currency must be a 3-letter code."
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	default:
		return "Invalid value."
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// actorOrAbort reads the authenticated caller set by the JWT middleware.
func actorOrAbort(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Authentication credentials were not provided."))
	}
	return actor, ok
}

func parseIDParam(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse("Invalid "+param))
		return 0, false
	}
	return id, true
}
