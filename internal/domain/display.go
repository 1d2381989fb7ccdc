package domain

// Fields are the display-ready values shared by every rendered record.
type Fields struct {
	ID         string
	Author     string
	Target     string
	Action     string
	ActionURL  string
	Avatar     string
	Message    string
	Event      string
	Labels     []Label
	AuthorName string
	TargetName string
	ActionName string
	Icon       string
	Time       string
}

// DisplayEvent is either a SmallEvent or a LargeEvent.
type DisplayEvent interface {
	Base() Fields
	displayEvent()
}

// SmallEvent is a record without a body.
type SmallEvent struct {
	Fields
}

// LargeEvent is a record that arrived with a body.
type LargeEvent struct {
	Fields
	Body string
}

func (e SmallEvent) Base() Fields { return e.Fields }
func (e LargeEvent) Base() Fields { return e.Fields }

func (SmallEvent) displayEvent() {}
func (LargeEvent) displayEvent() {}
