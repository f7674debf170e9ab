package mqtt

import "errors"

// Sentinel errors for MQTT operations, matched with errors.Is.
var (
	// ErrNotConnected: the client has no broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed: the initial connect did not complete.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS: QoS must be 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic: empty topic string.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
