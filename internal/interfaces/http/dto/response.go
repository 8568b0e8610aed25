package dto

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response carrying the
// request id for correlation with the logs
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.RequestID = requestID
	return resp
}

// InvoiceQuery holds the order identifier of an invoice request. orderId is
// the canonical parameter; order_id is accepted as an alias.
type InvoiceQuery struct {
	OrderID      string `form:"orderId" json:"orderId"`
	OrderIDAlias string `form:"order_id" json:"order_id"`
	// TTL is the requested link lifetime in seconds
	TTL int64 `form:"ttl" json:"ttl" binding:"omitempty,min=1"`
}

// RawOrderID returns the first non-empty order identifier
func (q InvoiceQuery) RawOrderID() string {
	if q.OrderID != "" {
		return q.OrderID
	}
	return q.OrderIDAlias
}

// LinkQuery holds the token of a local download link
type LinkQuery struct {
	Token string `form:"token" binding:"required"`
}

// HealthResponse is returned by the liveness endpoint
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
