package wsconn

// Frame is a server-to-client snapshot, e.g. {"type":"news","data":[...]}.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ErrorFrame reports a failure without closing the connection.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error builds an ErrorFrame. code may be empty.
func Error(msg, code string) ErrorFrame {
	return ErrorFrame{Type: "error", Error: msg, Code: code}
}
