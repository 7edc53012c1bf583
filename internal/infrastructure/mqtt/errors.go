package mqtt

import "errors"

// Sentinel errors. Check with errors.Is; wrapped errors carry the paho cause.
var (
	// ErrNotConnected means the broker connection is down. Devices keep
	// ticking and the next publish tries again.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means Connect could not reach the broker.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS and ErrInvalidTopic reject arguments before any
	// network call is made.
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
