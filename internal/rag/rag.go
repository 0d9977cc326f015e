// Package rag implements retrieval-augmented question answering over the
// indexed book: embed the question, fetch the closest chunks, assemble a
// grounded prompt and stream the model's answer as typed events.
package rag

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SourceRef is a citation attached to a streamed answer. Score is rounded to
// three decimals before it reaches the wire.
type SourceRef struct {
	Source       string  `json:"source"`
	SectionTitle string  `json:"section_title"`
	Score        float64 `json:"score"`
}
