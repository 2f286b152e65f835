package models

// MessageLevel is the severity of a user facing message
type MessageLevel string

const (
	LevelSuccess MessageLevel = "success"
	LevelError   MessageLevel = "error"
)

// Message is shown to the requester on the next response
type Message struct {
	Level MessageLevel `json:"level"`
	Text  string       `json:"text"`
}

// Messages collects user facing messages for a single request
type Messages struct {
	items []Message
}

// Add appends a message
func (m *Messages) Add(level MessageLevel, text string) {
	m.items = append(m.items, Message{Level: level, Text: text})
}

// Success appends a success level message
func (m *Messages) Success(text string) {
	m.Add(LevelSuccess, text)
}

// Error appends an error level message
func (m *Messages) Error(text string) {
	m.Add(LevelError, text)
}

// List returns the collected messages in the order they were added
func (m *Messages) List() []Message {
	if m.items == nil {
		return []Message{}
	}
	return m.items
}
