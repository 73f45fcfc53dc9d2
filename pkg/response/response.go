package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/pkg/logger"
)

// ErrorBody is the wire format shared by every error response:
// {"error":{"code","message","details"},"request_id"}. Codes are stable
// upper-snake identifiers clients can switch on.
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Stable error codes surfaced on the wire.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeRateLimited          = "RATE_LIMITED"
	CodePricingNotFound      = "PRICING_NOT_FOUND"
	CodePricingConflict      = "PRICING_CONFLICT"
	CodePricingMisconfigured = "PRICING_MISCONFIGURED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError represents a structured application error with HTTP status and a
// stable wire code.
type AppError struct {
	HTTPStatus int
	Code       string
	Message    string
	Details    interface{}
}

func (e *AppError) Error() string {
	return e.Message
}

// Pre-defined error constructors

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func NewConflict(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Code: code, Message: msg}
}

func NewServerError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Code: CodeInternal, Message: msg}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with the given body.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 Created response with the given body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 internal error is returned and the cause
// is logged with the correlation id.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		Fail(c, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	logger.Error().Err(err).Str("request_id", logger.RequestID(c)).Msg("unclassified error")
	Fail(c, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
}

// Fail sends a structured error response with the given status and code.
func Fail(c *gin.Context, status int, code, msg string, details interface{}) {
	c.JSON(status, ErrorBody{
		Error:     ErrorDetail{Code: code, Message: msg, Details: details},
		RequestID: logger.RequestID(c),
	})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	Fail(c, http.StatusBadRequest, CodeValidation, msg, nil)
}

func Unauthorized(c *gin.Context, msg string) {
	Fail(c, http.StatusUnauthorized, CodeUnauthorized, msg, nil)
}

func Forbidden(c *gin.Context, msg string) {
	Fail(c, http.StatusForbidden, CodeForbidden, msg, nil)
}

func NotFound(c *gin.Context, msg string) {
	Fail(c, http.StatusNotFound, CodeNotFound, msg, nil)
}

func ServerError(c *gin.Context, msg string) {
	Fail(c, http.StatusInternalServerError, CodeInternal, msg, nil)
}

// --- Pagination ---

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// Page is the envelope for paginated list endpoints.
type Page struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// PageParams holds validated paging and sorting query parameters.
type PageParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Offset returns the row offset for the current page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// ParsePageParams validates page >= 1 and page_size in [1,100].
func ParsePageParams(c *gin.Context) (PageParams, error) {
	p := PageParams{Page: 1, PageSize: 20, SortOrder: "desc"}

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, NewBadRequest("page must be a positive integer")
		}
		p.Page = n
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return p, NewBadRequest("page_size must be between 1 and 100")
		}
		p.PageSize = n
	}
	p.SortBy = c.Query("sort_by")
	if v := c.Query("sort_order"); v != "" {
		if v != "asc" && v != "desc" {
			return p, NewBadRequest("sort_order must be asc or desc")
		}
		p.SortOrder = v
	}
	return p, nil
}

// NewPage assembles a paginated envelope.
func NewPage(data interface{}, params PageParams, total int64) Page {
	pages := int(total) / params.PageSize
	if int(total)%params.PageSize != 0 {
		pages++
	}
	return Page{
		Data: data,
		Pagination: Pagination{
			Page:       params.Page,
			PageSize:   params.PageSize,
			TotalItems: total,
			TotalPages: pages,
		},
	}
}
