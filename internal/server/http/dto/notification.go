package dto

// NotificationAck is the acknowledgement body the provider expects.
type NotificationAck struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
