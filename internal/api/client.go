// Package api - запрос-ответный коллаборатор: аутентификация, кошелек,
// таблица лидеров, магазин и резервный снимок состояния комнаты.
// Board/turn из снимка применяются только через политику согласования.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tictacthrow/internal/domain"
	"tictacthrow/internal/logger"
)

var (
	ErrNotAuthenticated = errors.New("api: not authenticated")
	// ErrSessionExpired - сервер ответил 401; кэш сессии уже очищен
	ErrSessionExpired = errors.New("api: session expired")
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu     sync.RWMutex
	token  string
	player *domain.Player
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: trimBase(baseURL),
		http:    &http.Client{Timeout: timeout},
		log:     logger.Component("api"),
	}
}

func trimBase(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}

// ---- коллаборатор аутентификации ----

func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) CurrentPlayerID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.player != nil {
		return c.player.ID
	}
	return 0
}

func (c *Client) CurrentPlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.player != nil {
		return c.player.DisplayName()
	}
	return ""
}

// Logout сбрасывает кэш сессии
func (c *Client) Logout() {
	c.mu.Lock()
	c.token = ""
	c.player = nil
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, username, password, nickname string) (domain.Player, error) {
	body := map[string]string{"username": username, "password": password}
	if nickname != "" {
		body["nickname"] = nickname
	}
	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, false, &resp); err != nil {
		return domain.Player{}, err
	}
	return domain.Player{ID: resp.PlayerID, Username: resp.Username, Nickname: resp.Nickname}, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.Player, error) {
	body := map[string]string{"username": username, "password": password}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, false, &resp); err != nil {
		return domain.Player{}, err
	}
	if resp.Token == "" {
		return domain.Player{}, fmt.Errorf("api: login response has no token")
	}

	player := resp.Player
	if player == nil || player.ID == 0 {
		// старые версии сервера не присылают player - берем id из токена
		if id := playerIDFromToken(resp.Token); id > 0 {
			player = &domain.Player{ID: id, Username: username}
		}
	}
	if player == nil {
		return domain.Player{}, fmt.Errorf("api: login response has no player identity")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.player = player
	c.mu.Unlock()

	c.log.Info("logged in", "player_id", player.ID)
	return *player, nil
}

// playerIDFromToken вытаскивает sub без проверки подписи: подпись
// проверяет сервер, клиенту нужен только собственный id
func playerIDFromToken(token string) int {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	switch sub := claims["sub"].(type) {
	case float64:
		return int(sub)
	case string:
		id, _ := strconv.Atoi(sub)
		return id
	default:
		return 0
	}
}

// Me проверяет, что сохраненный токен еще жив
func (c *Client) Me(ctx context.Context) (domain.Player, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/api/players/me", nil, true, &resp); err != nil {
		return domain.Player{}, err
	}
	return domain.Player{ID: resp.PlayerID, Username: resp.Username, Nickname: resp.Nickname}, nil
}

// ---- комнаты (резервный канал) ----

// RoomSnapshot - снимок комнаты на момент запроса. Может отстать от
// событийного канала; вызывающий обязан пропустить его через
// политику согласования, а не применять напрямую.
func (c *Client) RoomSnapshot(ctx context.Context, roomID int) (RoomState, error) {
	var resp RoomState
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/rooms/%d", roomID), nil, true, &resp)
	return resp, err
}

// ---- кошелек и экономика ----

func (c *Client) Wallet(ctx context.Context) (domain.Wallet, error) {
	var resp domain.Wallet
	err := c.do(ctx, http.MethodGet, "/api/players/me/wallet", nil, true, &resp)
	return resp, err
}

func (c *Client) EconomyConfig(ctx context.Context) (domain.EconomyConfig, error) {
	var resp domain.EconomyConfig
	err := c.do(ctx, http.MethodGet, "/api/economy/config", nil, false, &resp)
	return resp, err
}

func (c *Client) Leaderboard(ctx context.Context, season string, limit int) ([]domain.LeaderboardEntry, error) {
	q := url.Values{}
	if season != "" {
		q.Set("season", season)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/leaderboard"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var resp leaderboardResponse
	if err := c.do(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) MyStats(ctx context.Context, season string) (domain.PlayerStats, error) {
	path := "/api/leaderboard/me"
	if season != "" {
		path += "?season=" + url.QueryEscape(season)
	}
	var resp domain.PlayerStats
	err := c.do(ctx, http.MethodGet, path, nil, true, &resp)
	return resp, err
}

// ---- магазин ----

func (c *Client) CoinPacks(ctx context.Context) ([]domain.CoinPack, error) {
	var resp coinPacksResponse
	if err := c.do(ctx, http.MethodGet, "/api/store/coin-packs", nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Packs, nil
}

func (c *Client) BuyHeart(ctx context.Context) (domain.Wallet, error) {
	var resp buyHeartResponse
	err := c.do(ctx, http.MethodPost, "/api/store/buy-heart", struct{}{}, true, &resp)
	return resp.Wallet, err
}

func (c *Client) BuyBooster(ctx context.Context, boosterCode string) (domain.Wallet, error) {
	body := map[string]string{"boosterCode": boosterCode}
	var resp buyBoosterResponse
	err := c.do(ctx, http.MethodPost, "/api/store/buy-booster", body, true, &resp)
	return resp.Wallet, err
}

// GrantCoinPack зачисляет купленный через стор пакет после верификации
// платежа (см. internal/iap)
func (c *Client) GrantCoinPack(ctx context.Context, coinPackCode string) (domain.Wallet, error) {
	if coinPackCode == "" {
		return domain.Wallet{}, fmt.Errorf("api: coin pack code is required")
	}
	body := map[string]string{"coinPackCode": coinPackCode}
	var resp buyHeartResponse
	err := c.do(ctx, http.MethodPost, "/api/store/grant-coin-pack", body, true, &resp)
	return resp.Wallet, err
}

// ---- ядро запросов ----

func (c *Client) do(ctx context.Context, method, path string, body any, needsAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if needsAuth {
		token := c.Token()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// протухший токен: чистим кэш, наверх уходит типизированная ошибка
		c.Logout()
		return ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api: %s %s: %s", method, path, extractError(resp.StatusCode, data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", path, err)
	}
	return nil
}

func extractError(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return fmt.Sprintf("status %d", status)
}
