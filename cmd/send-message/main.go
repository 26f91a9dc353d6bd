package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/tpp-chat-filter/internal/conf"
	"github.com/DevRickLin/tpp-chat-filter/internal/infra/feishu"
	"github.com/DevRickLin/tpp-chat-filter/internal/mcp"
)

// send-message posts a line to a Feishu chat, honoring the daemon's slowmode state.

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 3 {
		fmt.Println("Usage: send-message <chat_id> <message>")
		os.Exit(1)
	}
	chatID, message := os.Args[1], os.Args[2]

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.FeishuEnabled() {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	daemon := mcp.NewClient(cfg.API.URL)
	report, err := daemon.SlowmodeStatus(message)
	if err != nil {
		fmt.Printf("Warning: daemon unavailable, sending unchecked: %v\n", err)
	} else if report.Status.Blocked {
		fmt.Printf("Blocked (%s), retry in %ds\n", report.Status.Reason, report.Status.WaitSeconds())
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	if err := client.SendText(ctx, chatID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if report != nil {
		if _, err := daemon.RecordSend(message); err != nil {
			fmt.Printf("Warning: failed to record send: %v\n", err)
		}
	}
	fmt.Println("Message sent successfully!")
}
