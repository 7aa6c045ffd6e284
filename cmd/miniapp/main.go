// Command miniapp is a terminal client for the Mini App: it plays the tap
// game, keeps bookmarks, progress and the streak in a local state file and
// talks to the server the way the web client does.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"morentube/internal/catalog"
	"morentube/internal/game"
	"morentube/internal/leaderboard"
	"morentube/internal/localstore"
	"morentube/internal/telegram"
	"morentube/internal/userstate"
)

func usage() {
	fmt.Println("Usage: miniapp [-state file] [-api url] <command> [args...]")
	fmt.Println("Commands:")
	fmt.Println("  status               - Score, level, energy, boosts and streak")
	fmt.Println("  tap [n] [times]      - Tap with n fingers, times in a row")
	fmt.Println("  boost                - Refill energy with a daily boost")
	fmt.Println("  play                 - Interactive game; Enter taps, b boosts, q quits")
	fmt.Println("  sync                 - Report the score to the leaderboard now")
	fmt.Println("  leaderboard          - Show the top players")
	fmt.Println("  catalog              - List catalog items with bookmark and done marks")
	fmt.Println("  bookmark <id>        - Toggle a bookmark")
	fmt.Println("  bookmarks            - List bookmarks")
	fmt.Println("  done <id>            - Toggle an item as done")
	fmt.Println("  streak               - Record today's visit and show the streak")
}

type app struct {
	store  *localstore.Store
	engine *game.Engine
	apiURL string
	client *http.Client
}

func main() {
	_ = godotenv.Load()

	statePath := flag.String("state", envOr("MINIAPP_STATE", localstore.DefaultPath()), "state file")
	apiURL := flag.String("api", envOr("MINIAPP_API_URL", "http://localhost:8080"), "server base url")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	store, err := localstore.Open(*statePath)
	if err != nil {
		log.Fatal("Failed to open state:", err)
	}
	engine := game.NewEngine(store)
	if err := engine.Load(); err != nil {
		log.Fatal("Failed to load game:", err)
	}

	a := &app{
		store:  store,
		engine: engine,
		apiURL: strings.TrimRight(*apiURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command, rest := args[0], args[1:]
	switch command {
	case "status":
		a.status()
	case "tap":
		a.tap(rest)
	case "boost":
		if !engine.TriggerBoost() {
			fmt.Println("No boosts left today")
			return
		}
		fmt.Printf("⚡ Energy refilled, %d boosts left today\n", engine.State().DailyBoosts)
	case "play":
		a.play(ctx)
	case "sync":
		a.sync(ctx)
	case "leaderboard":
		a.leaderboard(ctx)
	case "catalog":
		a.catalog(ctx)
	case "bookmark":
		if len(rest) < 1 {
			log.Fatal("Usage: bookmark <id>")
		}
		on, err := userstate.NewBookmarks(store).Toggle(rest[0])
		if err != nil {
			log.Fatal("Failed to save bookmark:", err)
		}
		if on {
			fmt.Printf("🔖 %s bookmarked\n", rest[0])
		} else {
			fmt.Printf("%s removed from bookmarks\n", rest[0])
		}
	case "bookmarks":
		for _, id := range userstate.NewBookmarks(store).IDs() {
			fmt.Println(id)
		}
	case "done":
		if len(rest) < 1 {
			log.Fatal("Usage: done <id>")
		}
		done, err := userstate.NewProgress(store).Toggle(rest[0])
		if err != nil {
			log.Fatal("Failed to save progress:", err)
		}
		if done {
			fmt.Printf("✅ %s done\n", rest[0])
		} else {
			fmt.Printf("%s marked as not done\n", rest[0])
		}
	case "streak":
		n, err := userstate.NewStreak(store).Check(time.Now())
		if err != nil {
			log.Fatal("Failed to save streak:", err)
		}
		fmt.Printf("🔥 Streak: %d day(s)\n", n)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func (a *app) status() {
	st := a.engine.State()
	lvl := a.engine.CurrentLevel()
	fmt.Printf("Score:   %d\n", st.Score)
	fmt.Printf("Level:   %d. %s\n", lvl.ID, lvl.Name)
	if next, ok := a.engine.NextLevel(); ok {
		fmt.Printf("Next:    %s at %d (%.1f%%)\n", next.Name, next.Threshold, a.engine.Progress())
	} else {
		fmt.Println("Next:    max level reached")
	}
	fmt.Printf("Energy:  %d/%d (full in %s)\n", st.Energy, game.MaxEnergy, a.engine.EnergyFullIn())
	fmt.Printf("Boosts:  %d left today\n", st.DailyBoosts)

	var streak int
	if ok, _ := a.store.Get(userstate.StreakKey, &streak); ok {
		fmt.Printf("Streak:  %d day(s)\n", streak)
	}
	fmt.Printf("Saved:   %d bookmarks, %d done\n", len(userstate.NewBookmarks(a.store).IDs()), len(userstate.NewProgress(a.store).IDs()))
}

func (a *app) tap(args []string) {
	fingers, times := 1, 1
	if len(args) > 0 {
		fingers = atoiOr(args[0], 1)
	}
	if len(args) > 1 {
		times = atoiOr(args[1], 1)
	}

	total := 0
	for i := 0; i < times; i++ {
		gained := a.engine.Tap(fingers)
		if gained == 0 {
			fmt.Println("Out of energy")
			break
		}
		total += gained
	}
	st := a.engine.State()
	fmt.Printf("+%d, score %d, energy %d/%d\n", total, st.Score, st.Energy, game.MaxEnergy)
	if a.engine.IsSuperMode() {
		fmt.Printf("🔥 x2 for %s\n", a.engine.SuperModeTimeLeft().Round(time.Second))
	}
}

// play runs the game the way the app does while it is open: energy ticks up
// every second and the score is reported shortly after tapping stops.
func (a *app) play(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.engine.Start(ctx)
	syncer := a.newSyncer()
	defer syncer.Close()
	syncer.OnResult = func(res *leaderboard.Result, err error) {
		if err == nil && res != nil {
			fmt.Printf("\n🏆 rank #%d\n", res.Rank)
		}
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	fmt.Println("Enter taps, a number taps with that many fingers, b boosts, q quits")
	for {
		select {
		case <-ctx.Done():
			a.finalSync(syncer)
			return
		case line, ok := <-lines:
			if !ok || line == "q" {
				a.finalSync(syncer)
				return
			}
			if line == "b" {
				if a.engine.TriggerBoost() {
					fmt.Println("⚡ boost")
				} else {
					fmt.Println("No boosts left today")
				}
				continue
			}
			gained := a.engine.Tap(atoiOr(line, 1))
			st := a.engine.State()
			mark := ""
			if a.engine.IsSuperMode() {
				mark = " 🔥"
			}
			fmt.Printf("+%d%s  score %d  energy %d\n", gained, mark, st.Score, st.Energy)
		}
	}
}

func (a *app) finalSync(s *game.Syncer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.Force(ctx); err != nil {
		log.Printf("sync failed: %v", err)
	}
}

func (a *app) sync(ctx context.Context) {
	s := a.newSyncer()
	defer s.Close()
	res, err := s.Force(ctx)
	if err != nil {
		log.Fatal("Sync failed:", err)
	}
	if res == nil {
		fmt.Println("Nothing new to report")
		return
	}
	fmt.Printf("Synced as %s, rank #%d\n", s.Player().FirstName, res.Rank)
}

// newSyncer identifies the player from TELEGRAM_USER_ID and
// TELEGRAM_FIRST_NAME. With BOT_TOKEN set, requests are signed like a real
// Mini App launch.
func (a *app) newSyncer() *game.Syncer {
	player := game.Player{
		ID:        os.Getenv("TELEGRAM_USER_ID"),
		FirstName: os.Getenv("TELEGRAM_FIRST_NAME"),
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" && player.ID != "" {
		if id, err := strconv.ParseInt(player.ID, 10, 64); err == nil {
			player.InitData = telegram.SignInitData(telegram.AuthUser{ID: id, FirstName: player.FirstName}, time.Now(), token)
		}
	}
	s := game.NewSyncer(a.apiURL, a.engine, player)
	s.HTTPClient = a.client
	return s
}

func (a *app) leaderboard(ctx context.Context) {
	var top []leaderboard.Entry
	if err := a.getJSON(ctx, "/api/leaderboard", &top); err != nil {
		log.Fatal("Failed to load leaderboard:", err)
	}
	if len(top) == 0 {
		fmt.Println("Leaderboard is empty")
		return
	}
	for i, e := range top {
		fmt.Printf("%2d. %-24s %10d  %s\n", i+1, e.FirstName, e.Score, e.LevelName)
	}
}

func (a *app) catalog(ctx context.Context) {
	var snap catalog.Snapshot
	if err := a.getJSON(ctx, "/api/data", &snap); err != nil {
		log.Fatal("Failed to load catalog:", err)
	}
	bookmarks := userstate.NewBookmarks(a.store)
	progress := userstate.NewProgress(a.store)

	for _, c := range snap.Categories {
		items := snap.ItemsIn(c.ID)
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		fmt.Printf("%s (%d/%d done)\n", c.Title, progress.CompletedIn(ids), len(items))
		for _, it := range items {
			marks := "  "
			if progress.IsCompleted(it.ID) {
				marks = "✅"
			}
			if bookmarks.IsBookmarked(it.ID) {
				marks += "🔖"
			}
			fmt.Printf("  %s %-20s %s [%s]\n", marks, it.ID, it.Title, it.Type)
		}
	}
}

func (a *app) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
