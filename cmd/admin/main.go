// Command admin is the operator tool: broadcasts, webhook registration and
// catalog maintenance, run with the same environment as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"morentube/internal/blobstore"
	"morentube/internal/catalog"
	"morentube/internal/config"
	"morentube/internal/registry"
	"morentube/internal/security"
	"morentube/internal/tgbot"
)

func usage() {
	fmt.Println("Usage: admin <command> [args...]")
	fmt.Println("Commands:")
	fmt.Println("  broadcast <message>       - Send an HTML message to every registered chat")
	fmt.Println("  chats                     - Show how many chats are registered")
	fmt.Println("  set-webhook [url]         - Point Telegram at url (default PUBLIC_BASE_URL/api/webhook)")
	fmt.Println("  delete-webhook            - Remove the webhook")
	fmt.Println("  catalog                   - List categories and item counts")
	fmt.Println("  delete-category <id>      - Delete a category and its items")
	fmt.Println("  hash-secret <secret>      - Print a BROADCAST_SECRET_HASH value")
}

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	err := run(ctx, cfg, os.Args[1], os.Args[2:])
	cancel()

	if errors.Is(err, errUsage) {
		fmt.Println(err)
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// run executes one command. Stores opened here are closed before it returns.
func run(ctx context.Context, cfg config.Config, command string, args []string) error {
	switch command {
	case "broadcast":
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("%w: broadcast <message>", errUsage)
		}
		return broadcast(ctx, cfg, text)

	case "chats":
		reg, closeStore, err := openRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		ids, err := reg.All(ctx)
		if err != nil {
			return fmt.Errorf("failed to read chat registry: %w", err)
		}
		fmt.Printf("Registered chats: %d\n", len(ids))
		return nil

	case "set-webhook":
		url := cfg.PublicBaseURL + "/api/webhook"
		if len(args) > 0 {
			url = args[0]
		}
		if !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("webhook url must be https, got %q", url)
		}
		bot, err := newBot(cfg)
		if err != nil {
			return err
		}
		if err := bot.SetWebhook(url, cfg.WebhookSecret); err != nil {
			return fmt.Errorf("setWebhook failed: %w", err)
		}
		fmt.Printf("Webhook set to %s\n", url)
		return nil

	case "delete-webhook":
		bot, err := newBot(cfg)
		if err != nil {
			return err
		}
		if err := bot.DeleteWebhook(); err != nil {
			return fmt.Errorf("deleteWebhook failed: %w", err)
		}
		fmt.Println("Webhook deleted")
		return nil

	case "catalog":
		store, closeStore, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to read catalog: %w", err)
		}
		for _, c := range snap.Categories {
			private := ""
			if c.IsPrivate {
				private = " [private]"
			}
			fmt.Printf("%-24s %-40s %3d items%s\n", c.ID, c.Title, len(snap.ItemsIn(c.ID)), private)
		}
		fmt.Printf("Categories: %d, items: %d\n", len(snap.Categories), len(snap.Items))
		return nil

	case "delete-category":
		if len(args) < 1 {
			return fmt.Errorf("%w: delete-category <id>", errUsage)
		}
		store, closeStore, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to read catalog: %w", err)
		}
		next, ok := snap.DeleteCategory(args[0])
		if !ok {
			return fmt.Errorf("category %q not found", args[0])
		}
		if err := store.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save catalog: %w", err)
		}
		fmt.Printf("Deleted category %s (%d items removed)\n", args[0], len(snap.Items)-len(next.Items))
		return nil

	case "hash-secret":
		if len(args) < 1 {
			return fmt.Errorf("%w: hash-secret <secret>", errUsage)
		}
		hash, err := security.HashSecret(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash secret: %w", err)
		}
		fmt.Println(hash)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %s", errUsage, command)
	}
}

func broadcast(ctx context.Context, cfg config.Config, text string) error {
	reg, closeStore, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := reg.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chat registry: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("База користувачів порожня. Нікому надсилати.")
		return nil
	}

	bot, err := newBot(cfg)
	if err != nil {
		return err
	}
	b := &tgbot.Broadcaster{
		Sender:    bot,
		BatchSize: cfg.BroadcastBatchSize,
		Pause:     cfg.BroadcastBatchPause,
	}
	res, err := b.Send(ctx, ids, text)
	fmt.Println(res.Summary())
	if err != nil {
		return fmt.Errorf("broadcast interrupted: %w", err)
	}
	return nil
}

func openRegistry(ctx context.Context, cfg config.Config) (*registry.Registry, func(), error) {
	if cfg.BlobBackend == "memory" {
		return nil, nil, errors.New("no blob store configured: set BLOB_READ_WRITE_TOKEN, REDIS_URL or DATABASE_URL")
	}
	store, closeStore, err := blobstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return registry.New(store), closeStore, nil
}

func openCatalog(ctx context.Context, cfg config.Config) (catalog.Store, func(), error) {
	if cfg.CatalogBackend == "memory" {
		return nil, nil, errors.New("no catalog store configured: set EDGE_CONFIG or LIBSQL_URL")
	}
	store, closeStore, err := catalog.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	return store, closeStore, nil
}

func newBot(cfg config.Config) (*tgbot.Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}
	bot, err := tgbot.New(cfg.BotToken, cfg.TelegramAPIEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	return bot, nil
}
