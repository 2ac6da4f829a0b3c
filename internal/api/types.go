package api

import "tictacthrow/internal/domain"

type registerResponse struct {
	PlayerID int    `json:"playerId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type loginResponse struct {
	Token  string         `json:"token"`
	Player *domain.Player `json:"player"`
}

type meResponse struct {
	PlayerID int    `json:"playerId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// RoomPlayer - игрок в REST-снимке комнаты
type RoomPlayer struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol"`
	Nickname string `json:"nickname"`
}

// RoomState - point-in-time снимок комнаты из GET /api/rooms/{id}.
// Применяется только через политику согласования (см. session.Machine.Refresh).
type RoomState struct {
	RoomID int    `json:"roomId"`
	Status string `json:"status"`
	Players struct {
		Player1 *RoomPlayer `json:"player1"`
		Player2 *RoomPlayer `json:"player2"`
	} `json:"players"`
	CurrentTurnPlayerID int      `json:"currentTurnPlayerId"`
	Result              string   `json:"result"`
	Board               []string `json:"board"`
}

type leaderboardResponse struct {
	Season  string                    `json:"season"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

type coinPacksResponse struct {
	Packs []domain.CoinPack `json:"coinPacks"`
}

type buyHeartResponse struct {
	Wallet domain.Wallet `json:"wallet"`
}

type buyBoosterResponse struct {
	Wallet  domain.Wallet `json:"wallet"`
	Booster string        `json:"booster"`
}

type errorResponse struct {
	Error string `json:"error"`
}
