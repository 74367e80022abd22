// Package stream tracks the lifecycle of one in-flight model response
// per session and translates upstream provider events into the event
// vocabulary pushed to clients.
//
// Information Hiding:
// - State transitions guarded by a mutex behind the Session API
// - Accumulation buffer only readable as a snapshot via Buffer
// - Single-active-session bookkeeping hidden inside the Registry

package stream

// EventType labels an event pushed downstream to a client.
type EventType string

const (
	// EventStart signals that the upstream stream was established.
	EventStart EventType = "start"
	// EventText carries one response fragment in arrival order.
	EventText EventType = "text"
	// EventDone is the terminal sentinel of a successful response.
	EventDone EventType = "done"
	// EventError is the terminal sentinel of a failed response.
	EventError EventType = "error"
)

// Event is the unit pushed to a connected client. Text is set for
// EventText, Message for EventError.
type Event struct {
	Type    EventType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Message string    `json:"message,omitempty"`
}
