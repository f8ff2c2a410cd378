package quiz

// Fanout delivers every event to multiple sinks, e.g. the WebSocket hub plus
// the NATS relay.
type Fanout []Broadcaster

func (f Fanout) Broadcast(roomID int64, event Event) {
	for _, b := range f {
		b.Broadcast(roomID, event)
	}
}
