package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
	"github.com/DevRickLin/tpp-chat-filter/internal/conf"
)

// classify reads chat lines from stdin and prints one decision per line.
// Lines may be prefixed with "sender: " when -senders is set.

func main() {
	catalogPath := flag.String("catalog", os.Getenv("CATALOG_PATH"), "path to a YAML rules catalog")
	selfName := flag.String("self", os.Getenv("SELF_NAME"), "name that keeps bot broadcasts visible")
	senders := flag.Bool("senders", false, "split \"sender: text\" lines")
	asJSON := flag.Bool("json", false, "print decisions as JSON")
	hiddenOnly := flag.Bool("hidden", false, "only print hidden lines")
	var enable, disable multiFlag
	flag.Var(&enable, "enable", "setting to turn on (repeatable)")
	flag.Var(&disable, "disable", "setting to turn off (repeatable)")
	flag.Parse()

	rules, err := conf.LoadCatalog(*catalogPath, *selfName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	engine, err := usecase.NewEngine(nil, rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := toggle(engine, enable, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := toggle(engine, disable, false); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		text, sender := scanner.Text(), ""
		if *senders {
			if i := strings.Index(text, ": "); i > 0 {
				sender, text = text[:i], text[i+2:]
			}
		}

		decision := engine.Process(text, sender)
		if *hiddenOnly && decision.Visible {
			continue
		}
		if *asJSON {
			enc.Encode(struct {
				Sender string `json:"sender,omitempty"`
				Input  string `json:"input"`
				domain.Decision
			}{sender, text, decision})
			continue
		}
		if decision.Visible {
			fmt.Fprintf(out, "SHOW  %s\n", decision.Text)
		} else {
			fmt.Fprintf(out, "HIDE  %s  [%s]\n", text, strings.Join(decision.MatchedFilters, ","))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}
}

func toggle(engine *usecase.Engine, names []string, on bool) error {
	for _, name := range names {
		if err := engine.SetSetting(context.Background(), name, domain.BoolValue(on)); err != nil {
			return err
		}
	}
	return nil
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
