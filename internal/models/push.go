// internal/models/push.go
package models

// SendResponse is the outcome for one token of a multicast send.
type SendResponse struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResponse aggregates a multicast send. Responses follow input order.
type BatchResponse struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Responses    []SendResponse `json:"responses"`
}

// TopicError describes one token that could not be subscribed.
type TopicError struct {
	Index  int    `json:"index"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// TopicManagementResponse aggregates a batch topic subscription.
type TopicManagementResponse struct {
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Errors       []TopicError `json:"errors"`
}
