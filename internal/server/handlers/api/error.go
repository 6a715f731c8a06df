package api

import "fmt"

type APIError struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"error" msgpack:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drivesync api error: code=%s, message=%s", e.Code, e.Message)
}
