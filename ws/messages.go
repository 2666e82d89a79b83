package ws

import "encoding/json"

const (
	TypeSnapshot = "snapshot"
	TypeTyped    = "typed"
	TypeError    = "error"

	TypeInput    = "type"
	TypeProgress = "progress"
	TypeStart    = "start"
	TypeAdvance  = "advance"
	TypeFinish   = "finish"
	TypeRestart  = "restart"
)

type IncomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type OutgoingMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type inputPayload struct {
	Input string `json:"input"`
}

type progressPayload struct {
	CurrentWord int    `json:"currentWord"`
	Input       string `json:"input"`
}

func errorMessage(msg string) OutgoingMessage {
	return OutgoingMessage{
		Type:    TypeError,
		Payload: map[string]string{"message": msg},
	}
}
