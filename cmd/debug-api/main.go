package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/mcp"
)

// debug-api exercises a running filter daemon with a few sample lines.

var samples = []struct {
	sender string
	text   string
}{
	{"Red", "!democracy"},
	{"Blue", "up"},
	{"Green", "gg gg gg gg"},
	{"Yellow", "HEYY CHECK IT OUT"},
	{"Brock", "ᕦ( ͡° ͜ʖ ͡°)ᕤ"},
	{"Misty", "bitch pls"},
	{"TPPBot", "Ash is now 15th in the league"},
}

func main() {
	baseURL := "http://localhost:9876"
	if v := os.Getenv("FILTER_API_URL"); v != "" {
		baseURL = v
	}
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	}
	client := mcp.NewClient(baseURL)

	if err := client.Health(); err != nil {
		fmt.Printf("Daemon not reachable at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	fmt.Printf("=== Classify (%s) ===\n", baseURL)
	for _, s := range samples {
		decision, err := client.Classify(s.text, s.sender)
		if err != nil {
			fmt.Printf("  %-8s %q -> error: %v\n", s.sender, s.text, err)
			continue
		}
		if decision.Visible {
			fmt.Printf("  %-8s %q -> SHOW %q\n", s.sender, s.text, decision.Text)
		} else {
			fmt.Printf("  %-8s %q -> HIDE %v\n", s.sender, s.text, decision.MatchedFilters)
		}
	}

	fmt.Println("\n=== Settings ===")
	settings, err := client.ListSettings()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	}
	var category domain.Category
	for _, s := range settings {
		if s.Category != category {
			category = s.Category
			fmt.Printf("  [%s]\n", category.Title())
		}
		marker := " "
		if s.Overridden {
			marker = "*"
		}
		fmt.Printf("  %s %-22s %-8s %s\n", marker, s.Name, s.Value, s.Comment)
	}

	if filters, rewriters, err := client.Pipeline(); err == nil {
		fmt.Println("\n=== Pipeline ===")
		fmt.Printf("  filters:   %v\n", filters)
		fmt.Printf("  rewriters: %v\n", rewriters)
	}

	fmt.Println("\n=== Slowmode ===")
	report, err := client.SlowmodeStatus("")
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	out, _ := json.MarshalIndent(report, "  ", "  ")
	fmt.Printf("  %s\n", out)

	lines, err := client.RecentLines(10)
	if err == nil {
		fmt.Printf("\n=== Last %d buffered lines ===\n", len(lines))
		for _, l := range lines {
			fmt.Printf("  [%v] %s: %s\n", l.Decision.Visible, l.Sender, l.Decision.Text)
		}
	}
}
