package rag

import (
	"fmt"
	"strings"

	"github.com/QatreenFatima/ai-book/internal/vectordb"
)

// systemPrompt grounds general Q&A in retrieved book context only.
const systemPrompt = `You are a helpful teaching assistant for the "Physical AI & Humanoid Robotics" textbook.
Answer questions using ONLY the provided context from the book.
If the context does not contain enough information to answer, say "I don't have enough information from the book to answer that."

Rules:
- Be concise and educational.
- Reference which book section your answer comes from (page path and section title).
- Format source references at the end as: **Sources:** followed by a bulleted list.
- Use code examples from the book when relevant.
- Do not make up information not present in the context.`

// excerptSystemPrompt restricts answers to a reader-selected passage.
const excerptSystemPrompt = `You are a helpful teaching assistant for the "Physical AI & Humanoid Robotics" textbook.
Answer the question using ONLY the provided text excerpt. Do not use any other knowledge.
If the question cannot be answered from the excerpt alone, say so clearly.

Rules:
- Be concise and educational.
- Only reference the provided excerpt — do not bring in outside information.
- If the excerpt is code, explain what it does step by step.`

const contextAck = "I've read the provided book context. What would you like to know?"
const excerptAck = "I've read the excerpt. What would you like to know about it?"

// BuildContextPrompt assembles the message sequence for retrieval-grounded
// Q&A: system prompt, the numbered context block as a user message, a fixed
// assistant acknowledgement, prior history in order, then the question.
// The acknowledgement turn keeps models from answering the context block
// itself instead of the question.
func BuildContextPrompt(question string, chunks []vectordb.SearchResult, history []Message) []Message {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("--- Context %d [%s > %s] ---\n%s",
			i+1, chunk.Payload.Source, chunk.Payload.SectionTitle, chunk.Payload.Text))
	}
	contextBlock := strings.Join(parts, "\n\n")

	messages := []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: "Book context:\n\n" + contextBlock},
		{Role: RoleAssistant, Content: contextAck},
	}
	messages = append(messages, history...)
	return append(messages, Message{Role: RoleUser, Content: question})
}

// BuildExcerptPrompt assembles the message sequence for selected-text mode,
// which skips retrieval entirely and grounds the answer in one excerpt.
func BuildExcerptPrompt(question, excerpt string, history []Message) []Message {
	messages := []Message{
		{Role: RoleSystem, Content: excerptSystemPrompt},
		{Role: RoleUser, Content: "Text excerpt:\n\n" + excerpt},
		{Role: RoleAssistant, Content: excerptAck},
	}
	messages = append(messages, history...)
	return append(messages, Message{Role: RoleUser, Content: question})
}
