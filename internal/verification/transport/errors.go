package transport

import "fmt"

// StatusError is returned when the explorer answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Status %d when querying %s: %s", e.StatusCode, e.URL, e.Body)
}

// APIError is an explorer answer whose status flag is not success.
type APIError struct {
	Action  string
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Action, e.Result, e.Message)
}

// AsAPIError builds an APIError from a non-success response.
func AsAPIError(action string, resp *Response) *APIError {
	return &APIError{Action: action, Message: resp.Message, Result: resp.ResultText()}
}
