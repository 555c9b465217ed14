package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Variable-node value updates, pushed during the output phase
	MessageTypeNodeValue MessageType = "node_value"

	// Controller status snapshots
	MessageTypeControllerStatus MessageType = "controller_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NodeValueData represents one variable-node update
type NodeValueData struct {
	NodeID      string      `json:"node_id"`
	VariantType string      `json:"variant_type"`
	Value       interface{} `json:"value"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewNodeValueMessage creates a node_value update message
func NewNodeValueMessage(nodeID, variantType string, value interface{}) Message {
	return NewMessage(MessageTypeNodeValue, NodeValueData{
		NodeID:      nodeID,
		VariantType: variantType,
		Value:       value,
	})
}
