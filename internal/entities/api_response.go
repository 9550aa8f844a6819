package entities

import "time"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	Error     *ErrorInfo  `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorInfo struct {
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func Success(data interface{}) APIResponse {
	return APIResponse{Status: StatusSuccess, Data: data, Timestamp: time.Now().UTC()}
}

func Failure(message string, code int, fields map[string]string) APIResponse {
	return APIResponse{
		Status:    StatusError,
		Error:     &ErrorInfo{Message: message, Code: code, Fields: fields},
		Timestamp: time.Now().UTC(),
	}
}
