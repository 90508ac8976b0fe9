package amqp

import (
	"encoding/json"
	"time"
)

// ChatMessage is an inbound message from a linked (or not yet linked) chat.
// The gateway that talks to Telegram publishes these; the bot consumer does
// everything else.
type ChatMessage struct {
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatReply is the bot's answer, routed back to the gateway.
type ChatReply struct {
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatReply(chatID int64, text string) *ChatReply {
	return &ChatReply{ChatID: chatID, Text: text, Timestamp: time.Now()}
}

func (m *ChatMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }
func (m *ChatReply) ToJSON() ([]byte, error)   { return json.Marshal(m) }

func ChatMessageFromJSON(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
