package server

// The wire protocol is line-delimited. The client sends one JSON
// handshake line; the daemon answers with one JSON reply line. A
// subscribe handshake is followed by a stream of rendered units, one
// per line, until either side closes.

// Handshake is the first line a client sends.
type Handshake struct {
	// Action is "subscribe" or "update".
	Action string `json:"action"`

	// Format names the render format for subscribe.
	Format string `json:"format,omitempty"`

	// Modules lists blocks to re-poll for update; empty means all.
	Modules []string `json:"modules,omitempty"`
}

// Reply is the daemon's answer to a handshake.
type Reply struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
}

// Handshake actions.
const (
	ActionSubscribe = "subscribe"
	ActionUpdate    = "update"
)
