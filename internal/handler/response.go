package handler

// Response is the envelope every JSON endpoint returns. Status is
// "success" or "error"; Data carries the payload and is omitted on
// errors, Message the other way around.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// NewListResponse wraps a page of results with its pagination block
// under the given key.
func NewListResponse(key string, items, pagination interface{}) *Response {
	return &Response{
		Status: "success",
		Data: map[string]interface{}{
			key:          items,
			"pagination": pagination,
		},
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
