package models

// StatusResponse is the generic success/message payload returned by
// mutation operations that have no richer result.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
