package api

// TunnelConfig is the forwarding target of a tunnel
type TunnelConfig struct {
	Addr    string `json:"addr"`
	Inspect bool   `json:"inspect"`
}

// Tunnel is one entry of the tunnel manager's local status API
type Tunnel struct {
	Name      string       `json:"name"`
	URI       string       `json:"uri"`
	PublicURL string       `json:"public_url"`
	Proto     string       `json:"proto"`
	Config    TunnelConfig `json:"config"`
}

// TunnelsResponse is the body of GET /api/tunnels on the tunnel manager
type TunnelsResponse struct {
	Tunnels []Tunnel `json:"tunnels"`
	URI     string   `json:"uri"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// AckResponse is the body returned to Telegram once an update is accepted
type AckResponse struct {
	OK bool `json:"ok"`
}

// Message is one entry of the local message log
type Message struct {
	ID        int64  `json:"id" db:"id"`
	Platform  string `json:"platform" db:"platform"`
	Sender    string `json:"sender" db:"sender"`
	Text      string `json:"text" db:"text"`
	CreatedAt string `json:"created_at" db:"created_at"`
}

// MessagesResponse is the body of GET /messages
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// ErrorResponse is the body of a rejected request
type ErrorResponse struct {
	Error string `json:"error"`
}
