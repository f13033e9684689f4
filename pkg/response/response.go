package response

import (
	"github.com/gofiber/fiber/v2"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Status  string            `json:"status"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Page is the data payload of paginated listings.
type Page struct {
	Items      interface{} `json:"items"`
	Page       int         `json:"page"`
	PerPage    int         `json:"perPage"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"totalPages"`
}

// NewPage builds a Page, computing the number of pages from total and perPage.
func NewPage(items interface{}, total int64, page, perPage int) Page {
	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Page{Items: items, Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Success writes a success envelope with the given status code.
func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{Status: StatusSuccess, Data: data})
}

// Error writes an error envelope with the given status code.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Status: StatusError, Message: message})
}

// ValidationError writes a 400 error envelope listing the failed fields.
func ValidationError(c *fiber.Ctx, message string, fields map[string]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(Envelope{Status: StatusError, Message: message, Errors: fields})
}
