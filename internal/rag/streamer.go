package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/QatreenFatima/ai-book/internal/log"
)

// MaxResponseTokens caps the model's answer length.
const MaxResponseTokens = 1024

// InterruptedMessage is the error text sent to clients when a stream fails
// after it has started. The real cause is logged, never sent.
const InterruptedMessage = "Stream interrupted. Please try again."

// EventType discriminates streamed events.
type EventType string

const (
	// EventContent carries one answer fragment, exactly as the model
	// produced it. Fragments are never merged or re-split.
	EventContent EventType = "content"
	// EventSources carries the citation list, emitted once after the last
	// fragment of a successful stream.
	EventSources EventType = "sources"
	// EventError carries a client-safe error message.
	EventError EventType = "error"
	// EventDone terminates every stream, successful or not.
	EventDone EventType = "done"
)

// Event is one item in a response stream.
type Event struct {
	Type    EventType
	Content string
	Sources []SourceRef
	Message string
}

// EmitFunc consumes one event. Returning an error stops the stream; the
// producer treats it as a disconnected client and emits nothing further.
type EmitFunc func(Event) error

// Streamer turns a prompt into a live token stream from the chat model.
type Streamer struct {
	client *openai.Client
	model  string
	logger log.Logger
}

// NewStreamer wraps an OpenAI-compatible client for the given chat model.
func NewStreamer(client *openai.Client, model string, logger log.Logger) *Streamer {
	return &Streamer{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Stream requests a streamed completion and pushes typed events to emit:
// content fragments as they arrive, one sources event when the answer
// finishes and sources exist, and a final done event. If the upstream
// stream fails after starting, the client receives an error event followed
// by done, and the accumulated partial answer is returned with the error.
func (s *Streamer) Stream(ctx context.Context, messages []Message, sources []SourceRef, emit EmitFunc) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     s.model,
		Messages:  toOpenAI(messages),
		MaxTokens: MaxResponseTokens,
		Stream:    true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("starting completion stream: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			s.logger.Error("completion stream failed", "error", recvErr)
			if emitErr := emit(Event{Type: EventError, Message: InterruptedMessage}); emitErr != nil {
				return answer.String(), recvErr
			}
			_ = emit(Event{Type: EventDone})
			return answer.String(), fmt.Errorf("receiving completion stream: %w", recvErr)
		}

		if len(resp.Choices) == 0 {
			continue
		}
		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		answer.WriteString(fragment)
		if err := emit(Event{Type: EventContent, Content: fragment}); err != nil {
			return answer.String(), fmt.Errorf("emitting fragment: %w", err)
		}
	}

	if len(sources) > 0 {
		if err := emit(Event{Type: EventSources, Sources: RoundScores(sources)}); err != nil {
			return answer.String(), fmt.Errorf("emitting sources: %w", err)
		}
	}
	if err := emit(Event{Type: EventDone}); err != nil {
		return answer.String(), fmt.Errorf("emitting done: %w", err)
	}

	return answer.String(), nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// RoundScores copies sources with each score rounded to three decimals, the
// precision citations carry on the wire and in storage.
func RoundScores(sources []SourceRef) []SourceRef {
	out := make([]SourceRef, len(sources))
	for i, s := range sources {
		s.Score = math.Round(s.Score*1000) / 1000
		out[i] = s
	}
	return out
}
