package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "connection refused", err: errors.New("connection refused"), expected: true},
		{name: "connection closed", err: errors.New("connection closed"), expected: true},
		{name: "unexpected EOF", err: errors.New("unexpected EOF"), expected: true},
		{name: "broken pipe", err: errors.New("broken pipe"), expected: true},
		{name: "closed network connection", err: errors.New("use of closed network connection"), expected: true},
		{name: "delivery channel gone", err: errors.New("message channel closed"), expected: true},
		{name: "handler error", err: errors.New("invalid input"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestChatMessageJSON(t *testing.T) {
	original := &ChatMessage{
		ChatID:    777,
		Text:      "Lunch 50",
		Timestamp: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON produced: %v", err)
	}
	if raw["chat_id"].(float64) != 777 {
		t.Errorf("chat_id = %v, want 777", raw["chat_id"])
	}

	decoded, err := ChatMessageFromJSON(data)
	if err != nil {
		t.Fatalf("ChatMessageFromJSON: %v", err)
	}
	if decoded.ChatID != original.ChatID || decoded.Text != original.Text {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
}

func TestChatMessageFromInvalidJSON(t *testing.T) {
	for _, payload := range []string{"", "{", `"just a string"`} {
		if _, err := ChatMessageFromJSON([]byte(payload)); err == nil {
			t.Errorf("ChatMessageFromJSON(%q) = nil error, want failure", payload)
		}
	}
}

func TestNewChatReply(t *testing.T) {
	reply := NewChatReply(42, "Saved: Lunch, 50")
	if reply.ChatID != 42 || reply.Text != "Saved: Lunch, 50" {
		t.Errorf("NewChatReply = %+v", reply)
	}
	if reply.Timestamp.IsZero() {
		t.Error("NewChatReply left Timestamp zero")
	}
}
