package domain

import "time"

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// AIModel names the analyst model shown to the operator.
type AIModel string

const (
	ModelGemini  AIModel = "Gemini"
	ModelChatGPT AIModel = "ChatGPT"
	ModelClaude  AIModel = "Claude"
	ModelSystem  AIModel = "System"
)

// Valid reports whether m is a known model name.
func (m AIModel) Valid() bool {
	switch m {
	case ModelGemini, ModelChatGPT, ModelClaude, ModelSystem:
		return true
	}
	return false
}

// ChatMessage is one turn of the analyst conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	AIModel   AIModel   `json:"aiModel,omitempty"`
}
