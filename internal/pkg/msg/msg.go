package msg

import "github.com/google/uuid"

// Topic selects a class of messages on a PubSub.
type Topic int

const (
	// Record carries a hub.Record after every successful solve.
	Record Topic = iota
	// Point carries a pareto.Point once its solve finished, successful or not.
	Point
	// Scenario carries a scenario.Row once its solve finished.
	Scenario
)

func (t Topic) String() string {
	switch t {
	case Record:
		return "record"
	case Point:
		return "point"
	case Scenario:
		return "scenario"
	default:
		return "unknown"
	}
}

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a payload tagged with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}
