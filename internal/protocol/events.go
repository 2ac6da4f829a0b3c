// Package protocol описывает проводной формат событийного канала:
// имена событий, структуры полезной нагрузки и декодер.
package protocol

import "errors"

// входящие события
const (
	EvtRoomCreateSuccess = "room:create:success"
	EvtRoomCreateError   = "room:create:error"
	EvtRoomJoinSuccess   = "room:join:success"
	EvtRoomJoinError     = "room:join:error"
	EvtRoomJoined        = "room:joined"
	EvtRoomMove          = "room:move"
	EvtRoomFinished      = "room:finished"
	EvtGameMoveSuccess   = "game:move:success"
	EvtGameMoveError     = "game:move:error"
	EvtQueueSuccess      = "matchmaking:queue:success"
	EvtQueueError        = "matchmaking:queue:error"
	EvtMatched           = "matchmaking:matched"
	EvtBotAdded          = "matchmaking:bot_added"
	EvtCancelSuccess     = "matchmaking:cancel:success"
	EvtCancelError       = "matchmaking:cancel:error"
)

// исходящие операции
const (
	OpRoomCreate      = "room:create"
	OpRoomJoin        = "room:join"
	OpSubscribeRoom   = "subscribe:room"
	OpUnsubscribeRoom = "unsubscribe:room"
	OpGameMove        = "game:move"
	OpQueue           = "matchmaking:queue"
	OpCancel          = "matchmaking:cancel"
)

var errMissingRoomID = errors.New("roomId is missing or not positive")

type RoomCreateSuccess struct {
	RoomID int    `json:"roomId"`
	Status string `json:"status"`
}

func (p *RoomCreateSuccess) Validate() error {
	if p.RoomID <= 0 {
		return errMissingRoomID
	}
	return nil
}

// PlayerPayload - игрок в составе комнаты
type PlayerPayload struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol"`
	Nickname string `json:"nickname"`
}

// RoomJoin приходит и как ответ на room:join, и как broadcast room:joined
type RoomJoin struct {
	RoomID              int            `json:"roomId"`
	Status              string         `json:"status"`
	Player1             *PlayerPayload `json:"player1"`
	Player2             *PlayerPayload `json:"player2"`
	CurrentTurnPlayerID int            `json:"currentTurnPlayerId"`
}

func (p *RoomJoin) Validate() error {
	if p.RoomID <= 0 {
		return errMissingRoomID
	}
	return nil
}

// RoomMove несет полный снимок доски, не дельту
type RoomMove struct {
	RoomID              int      `json:"roomId"`
	Board               []string `json:"board"`
	CurrentTurnPlayerID int      `json:"currentTurnPlayerId"`
}

func (p *RoomMove) Validate() error {
	if p.RoomID <= 0 {
		return errMissingRoomID
	}
	if p.Board == nil {
		return errors.New("board is missing")
	}
	return nil
}

type RoomFinished struct {
	RoomID int      `json:"roomId"`
	Board  []string `json:"board"`
	Result string   `json:"result"`
}

func (p *RoomFinished) Validate() error {
	if p.RoomID <= 0 {
		return errMissingRoomID
	}
	return nil
}

type GameMoveSuccess struct {
	RoomID    int `json:"roomId"`
	CellIndex int `json:"cellIndex"`
}

// MatchmakingQueue: mode "waiting" - комната создана, пары еще нет;
// mode "matched" - пара найдена, состав комнаты в этом же событии
type MatchmakingQueue struct {
	Mode                string         `json:"mode"`
	RoomID              int            `json:"roomId"`
	Status              string         `json:"status"`
	Player1             *PlayerPayload `json:"player1"`
	Player2             *PlayerPayload `json:"player2"`
	CurrentTurnPlayerID *int           `json:"currentTurnPlayerId"`
}

func (p *MatchmakingQueue) Validate() error {
	if p.Mode == "" {
		return errors.New("mode is missing")
	}
	if p.RoomID <= 0 {
		return errMissingRoomID
	}
	return nil
}

const (
	QueueModeWaiting = "waiting"
	QueueModeMatched = "matched"
)

// MatchedRoom - вложенный состав комнаты в matchmaking:matched
// (сервер отдает его в snake_case)
type MatchedRoom struct {
	RoomID              int    `json:"room_id"`
	Player1ID           int    `json:"player1_id"`
	Player2ID           int    `json:"player2_id"`
	Player1Symbol       string `json:"player1_symbol"`
	Player2Symbol       string `json:"player2_symbol"`
	Status              string `json:"status"`
	CurrentTurnPlayerID int    `json:"current_turn_player_id"`
}

type MatchmakingMatched struct {
	Mode   string       `json:"mode"`
	RoomID int          `json:"roomId"`
	Status string       `json:"status"`
	Room   *MatchedRoom `json:"room"`
	IsBot  bool         `json:"isBot"`
}

// EffectiveRoomID: сервер иногда присылает roomId=0, но валидный
// room.room_id - берем любой положительный
func (p *MatchmakingMatched) EffectiveRoomID() int {
	if p.RoomID > 0 {
		return p.RoomID
	}
	if p.Room != nil && p.Room.RoomID > 0 {
		return p.Room.RoomID
	}
	return 0
}

func (p *MatchmakingMatched) Validate() error {
	if p.EffectiveRoomID() <= 0 {
		return errMissingRoomID
	}
	return nil
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// QueueError дополнительно несет остаток сердец при not_enough_hearts
type QueueError struct {
	Error  string `json:"error"`
	Hearts *int   `json:"hearts"`
}

const ErrNotEnoughHearts = "not_enough_hearts"

// запросы исходящих операций

type JoinRoomRequest struct {
	RoomID int `json:"roomId"`
}

type MoveRequest struct {
	RoomID    int `json:"roomId"`
	CellIndex int `json:"cellIndex"`
}
