package core

import "strings"

// Message is a single conversational input supplied by the caller. Immutable
// once handed to the pipeline.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContentText flattens a batch of messages into a single prompt-ready block,
// one "role: content" line per message.
func ContentText(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
