package domain

// State is a session's position in the lifecycle state machine.
type State string

const (
	Pending     State = "Pending"
	Resolving   State = "Resolving"
	Queued      State = "Queued"
	Transcoding State = "Transcoding"
	Ready       State = "Ready"
	Failed      State = "Failed"
	Closed      State = "Closed"
)

// validTransitions is the adjacency map of the session state machine. Any
// transition not listed here is a programmer error.
var validTransitions = map[State]map[State]bool{
	Pending:     {Resolving: true},
	Resolving:   {Queued: true, Failed: true},
	Queued:      {Transcoding: true, Failed: true},
	Transcoding: {Ready: true, Failed: true},
	Ready:       {Ready: true},
}

// CanTransition reports whether moving from "from" to "to" is a legal edge
// of the session state machine. "*→Closed" is legal from any state except
// Closed itself, handled as a special case rather than in the adjacency map
// so every other state doesn't need to repeat it.
func CanTransition(from, to State) bool {
	if to == Closed {
		return from != Closed
	}
	edges, ok := validTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
