package dto

const (
	ErrorKindInvalidHeartbeat = "invalid_heartbeat"
	ErrorKindStoreUnavailable = "store_unavailable"
	ErrorKindInternal         = "internal_error"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
