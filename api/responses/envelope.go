package responses

// Success is the body of every 2xx JSON response.
type Success struct {
	Data any `json:"data"`
}

// Failure is the body of every error response.
type Failure struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
