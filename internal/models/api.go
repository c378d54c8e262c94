// Package models defines API response structures shared by the HTTP surface.
package models

// APIResponse provides a consistent JSON envelope for all endpoints.
type APIResponse struct {
	Status  string      `json:"status"` // "ok" or "error"
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a success response with a result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage creates a success response with a message and payload.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error creates an error response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}

// TurnResult is what one qualification turn returns to the surface.
type TurnResult struct {
	Message    string `json:"message"`
	Notifiable bool   `json:"notifiable"`
	Terminal   bool   `json:"terminal"`
}
