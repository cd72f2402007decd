package model

import "encoding/json"

type MessageType string

const (
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeRegistered   MessageType = "registered"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeOrderCreated MessageType = "order_created"
	MessageTypeError        MessageType = "error"
)

// --- Event Channel Messages ---

type EventFrame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"` // Keep raw to parse into specific structs
	Error   string          `json:"error,omitempty"`
}

// OrderCreated is the payload of an order_created frame.
type OrderCreated struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}
