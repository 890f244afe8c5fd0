package room

import (
	"encoding/json"
	"log"
	"time"

	"teenpatti-lite/teenpatti"
)

// Server event names. Clients switch on these.
const (
	EventTypeGameState      = "gameState"
	EventTypeActionResult   = "actionResult"
	EventTypeTurnTimeout    = "turnTimeout"
	EventTypeSideShowResult = "sideShowResult"
	EventTypeGameEnded      = "gameEnded"
	EventTypePlayerJoined   = "playerJoined"
	EventTypePlayerLeft     = "playerLeft"
	EventTypeError          = "error"
)

// ServerEnvelope is the one wire shape for everything the room emits.
// State is always redacted for the receiving viewer before send.
type ServerEnvelope struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Seq    uint64 `json:"seq"`
	TsMs   int64  `json:"tsMs"`

	State          *teenpatti.SessionSnapshot `json:"state,omitempty"`
	Action         *teenpatti.LastAction      `json:"action,omitempty"`
	SideShowResult *teenpatti.SideShowResult  `json:"sideShowResult,omitempty"`
	Settlement     *teenpatti.Settlement      `json:"settlement,omitempty"`
	PlayerID       string                     `json:"playerId,omitempty"`
	PlayerName     string                     `json:"playerName,omitempty"`
	Error          *ErrorBody                 `json:"error,omitempty"`
}

// ErrorBody carries a machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientEnvelope is one inbound message from a player.
type ClientEnvelope struct {
	Type           string `json:"type"`
	PlayerID       string `json:"playerId"`
	Amount         int64  `json:"amount,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

func (r *Room) newEnvelope(eventType string) *ServerEnvelope {
	return &ServerEnvelope{
		Type:   eventType,
		RoomID: r.ID,
		Seq:    r.nextSeq(),
		TsMs:   time.Now().UnixMilli(),
	}
}

func encodeEnvelope(env *ServerEnvelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Room %s] marshal envelope failed: %v", env.RoomID, err)
		return nil
	}
	return data
}
