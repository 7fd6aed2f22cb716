package gateway

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every REST response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// ListData is a list with its total size before limiting.
type ListData struct {
	Rows  any `json:"rows"`
	Total int `json:"total"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func ok(c echo.Context, data any) error { return dataResponse(c, http.StatusOK, data) }

func badRequest(c echo.Context, data any) error {
	return dataResponse(c, http.StatusBadRequest, data)
}

func notFound(c echo.Context, msg string) error {
	return dataResponse(c, http.StatusNotFound, []ValidationError{{Code: "ERR_NOT_FOUND", Message: msg}})
}

func internalError(c echo.Context) error {
	return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
