package domain

// Label is an issue label carried along with issue events.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// RawEvent is a feed record as it is stored and pushed to subscribers.
// Body is a pointer: its presence, not its content, decides the large layout.
type RawEvent struct {
	ID        string  `json:"id,omitempty"`
	Author    string  `json:"author"`
	Target    string  `json:"target"`
	Action    string  `json:"action"`
	ActionURL string  `json:"actionUrl,omitempty"`
	Avatar    string  `json:"avatar,omitempty"`
	Message   string  `json:"message,omitempty"`
	Event     string  `json:"event"`
	Time      string  `json:"time"`
	Body      *string `json:"body,omitempty"`
	Labels    []Label `json:"labels,omitempty"`
}

// HasBody reports whether the record carries a body field at all.
func (e RawEvent) HasBody() bool {
	return e.Body != nil
}
