package osrf

// Event is a structured status reply from the backend.
//
// Every mutating method answers with an event: code 0 (or no event at
// all) is success, a nonzero code with a text code is a business-rule
// rejection.
type Event struct {
	Code     int64
	TextCode string
	Desc     string
	Payload  any
}

// ParseEvent interprets a decoded value as a backend event.
//
// Returns false when the value does not carry the event marker key, in
// which case the value is an ordinary payload.
func ParseEvent(v any) (*Event, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := m["ilsevent"]
	if !ok {
		return nil, false
	}
	code, _ := Int64(raw)
	text, _ := String(m["textcode"])
	desc, _ := String(m["desc"])
	return &Event{
		Code:     code,
		TextCode: text,
		Desc:     desc,
		Payload:  m["payload"],
	}, true
}

// Success reports whether the event signals a completed operation.
func (e *Event) Success() bool {
	return e == nil || e.Code == 0
}
