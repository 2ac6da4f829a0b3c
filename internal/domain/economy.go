package domain

// Wallet - кошелек игрока: сердца тратятся на матчмейкинг,
// монеты - на бустеры и сердца
type Wallet struct {
	Hearts int `json:"hearts"`
	Coins  int `json:"coins"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID int    `json:"playerId"`
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Score    int    `json:"score"`
}

type PlayerStats struct {
	Season string `json:"season"`
	Rank   int    `json:"rank"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Score  int    `json:"score"`
}

type CoinPack struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Coins int    `json:"coins"`
	// цена в сторе, строкой - формат зависит от магазина
	Price string `json:"price"`
	SKU   string `json:"sku"`
}

type Booster struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Cost  int    `json:"cost"`
}

// EconomyConfig - серверные цены и лимиты экономики
type EconomyConfig struct {
	HeartPrice int       `json:"heartPrice"`
	MaxHearts  int       `json:"maxHearts"`
	Boosters   []Booster `json:"boosters"`
}
