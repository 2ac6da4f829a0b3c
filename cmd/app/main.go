package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tictacthrow/internal/api"
	"tictacthrow/internal/config"
	"tictacthrow/internal/domain"
	"tictacthrow/internal/iap"
	"tictacthrow/internal/logger"
	"tictacthrow/internal/session"
	"tictacthrow/internal/ws"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat == "json")
	log := logger.Get()

	if cfg.Username == "" || cfg.Password == "" {
		logger.Fatal("GAME_USERNAME and GAME_PASSWORD are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := api.NewClient(cfg.ServerURL, cfg.RequestTimeout)
	player, err := signIn(ctx, apiClient, cfg)
	if err != nil {
		logger.Fatal("sign in failed", "error", err)
	}
	log.Info("signed in", "player_id", player.ID, "name", player.DisplayName())

	socketBase := cfg.SocketURL
	if socketBase == "" {
		socketBase = cfg.ServerURL
	}
	wsClient := ws.NewClient(socketBase, apiClient.Token())
	defer wsClient.Close()

	machine := session.NewMachine(wsClient, apiClient, apiClient, session.Hooks{
		OnSnapshot: func(s domain.Session, phase session.Phase) {
			fmt.Println(renderSession(s, phase))
		},
		OnError: func(msg string) {
			fmt.Println("! " + msg)
		},
		OnConnectionChange: func(connected bool) {
			if connected {
				fmt.Println("* connected")
			} else {
				fmt.Println("* connection lost, reconnecting...")
			}
		},
	})
	store := iap.NewService(iap.NoopProvider{}, apiClient)

	if err := wsClient.Connect(ctx); err != nil {
		logger.Fatal("socket connect failed", "error", err)
	}
	go machine.Run(ctx)
	machine.AuthSucceeded()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	runConsole(ctx, machine, apiClient, store)

	stop()
	log.Info("shutting down")
}

// signIn логинится, при неизвестном аккаунте регистрируется и
// повторяет вход
func signIn(ctx context.Context, c *api.Client, cfg *config.Config) (domain.Player, error) {
	player, err := c.Login(ctx, cfg.Username, cfg.Password)
	if err == nil {
		return player, nil
	}
	if _, regErr := c.Register(ctx, cfg.Username, cfg.Password, cfg.Nickname); regErr != nil {
		return domain.Player{}, fmt.Errorf("login: %v; register: %w", err, regErr)
	}
	return c.Login(ctx, cfg.Username, cfg.Password)
}

func serveMetrics(addr string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Get().Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Get().Error("metrics listener failed", "error", err)
	}
}

func runConsole(ctx context.Context, m *session.Machine, c *api.Client, store *iap.Service) {
	fmt.Println("commands: create | join <id> | queue | cancel | move <0-8> | board | refresh | wallet | economy | top | stats | packs | buyheart | buypack <code> | leave | logout | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := 0
		if len(fields) > 1 {
			arg, _ = strconv.Atoi(fields[1])
		}

		switch fields[0] {
		case "create":
			m.OpenFriendlyRoomSetup()
			m.CreateRoom()
		case "join":
			m.OpenJoinCode()
			m.JoinRoom(arg)
		case "queue":
			m.QueueMatchmaking()
		case "cancel":
			m.CancelMatchmaking()
		case "move":
			m.Move(arg)
		case "board":
			fmt.Println(renderSession(m.Current(), m.Phase()))
		case "refresh":
			if err := m.Refresh(ctx); err != nil {
				fmt.Println("! refresh: " + err.Error())
			}
		case "wallet":
			showWallet(ctx, c)
		case "economy":
			showEconomy(ctx, c)
		case "top":
			showLeaderboard(ctx, c)
		case "stats":
			showStats(ctx, c)
		case "packs":
			showCoinPacks(ctx, c)
		case "buyheart":
			if w, err := c.BuyHeart(ctx); err != nil {
				fmt.Println("! " + err.Error())
			} else {
				fmt.Printf("hearts: %d, coins: %d\n", w.Hearts, w.Coins)
			}
		case "buypack":
			buyPack(ctx, c, store, fields)
		case "leave":
			m.LeaveToLobby()
		case "logout":
			m.Logout()
		case "quit", "exit":
			return
		default:
			fmt.Println("? unknown command: " + fields[0])
		}
	}
}

func showWallet(ctx context.Context, c *api.Client) {
	w, err := c.Wallet(ctx)
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	fmt.Printf("hearts: %d, coins: %d\n", w.Hearts, w.Coins)
}

func showEconomy(ctx context.Context, c *api.Client) {
	cfg, err := c.EconomyConfig(ctx)
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	fmt.Printf("heart price: %d coins, max hearts: %d\n", cfg.HeartPrice, cfg.MaxHearts)
	for _, b := range cfg.Boosters {
		fmt.Printf("%-12s %d coins\n", b.Code, b.Cost)
	}
}

func showLeaderboard(ctx context.Context, c *api.Client) {
	entries, err := c.Leaderboard(ctx, "", 10)
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	for _, e := range entries {
		fmt.Printf("%3d. %-20s %d\n", e.Rank, e.Nickname, e.Score)
	}
}

func showStats(ctx context.Context, c *api.Client) {
	st, err := c.MyStats(ctx, "")
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	fmt.Printf("season %s: rank %d, %dW/%dL/%dD, score %d\n",
		st.Season, st.Rank, st.Wins, st.Losses, st.Draws, st.Score)
}

func showCoinPacks(ctx context.Context, c *api.Client) {
	packs, err := c.CoinPacks(ctx)
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	for _, p := range packs {
		fmt.Printf("%-12s %5d coins  %s\n", p.Code, p.Coins, p.Price)
	}
}

func buyPack(ctx context.Context, c *api.Client, store *iap.Service, fields []string) {
	if len(fields) < 2 {
		fmt.Println("? usage: buypack <code>")
		return
	}
	packs, err := c.CoinPacks(ctx)
	if err != nil {
		fmt.Println("! " + err.Error())
		return
	}
	for _, p := range packs {
		if p.Code == fields[1] {
			if w, err := store.BuyCoinPack(ctx, p); err != nil {
				fmt.Println("! " + err.Error())
			} else {
				fmt.Printf("hearts: %d, coins: %d\n", w.Hearts, w.Coins)
			}
			return
		}
	}
	fmt.Println("? unknown pack: " + fields[1])
}

func renderSession(s domain.Session, phase session.Phase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", phase)
	if !s.Active() {
		return b.String()
	}
	fmt.Fprintf(&b, " room %d (%s)", s.RoomID, s.Status)
	if s.LocalSymbol != domain.SymbolNone {
		fmt.Fprintf(&b, " you=%s", s.LocalSymbol)
	}
	if s.TurnPlayerID != 0 {
		fmt.Fprintf(&b, " turn=%d", s.TurnPlayerID)
	}
	if s.Result != domain.ResultNone {
		fmt.Fprintf(&b, " result=%s", s.Result)
	}
	b.WriteByte('\n')
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := s.Board[row*3+col]
			if cell == domain.SymbolNone {
				cell = "."
			}
			b.WriteString(string(cell))
			if col < 2 {
				b.WriteByte(' ')
			}
		}
		if row < 2 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
