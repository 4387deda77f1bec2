package chat

// EventType names a controller state change.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventPhase   EventType = "phase"
	EventBlocked EventType = "blocked"
)

// Event is delivered to subscribers after the change has been applied.
type Event struct {
	Type      EventType `json:"type"`
	SessionID int       `json:"session_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Typing    bool      `json:"typing,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Blocked   bool      `json:"blocked,omitempty"`
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event and returns a function that removes
// it. fn is called synchronously on the goroutine that made the change and
// must not call back into the controller's mutating methods.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) emit(ev Event) {
	c.subMu.Lock()
	subs := append([]subscriber(nil), c.subs...)
	c.subMu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
