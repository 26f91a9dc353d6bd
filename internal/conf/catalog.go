package conf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/usecase"
)

// Catalog is the YAML rule file. Omitted fields keep the built-in defaults.
type Catalog struct {
	Command      CommandCatalog `yaml:"command"`
	SpamPhrases  []string       `yaml:"spam_phrases"`
	URLAllowList []string       `yaml:"url_allow_list"`
	BotSenders   []string       `yaml:"bot_senders"`
	Lowercase    string         `yaml:"lowercase"`
}

// CommandCatalog configures the command classifier
type CommandCatalog struct {
	Words            []string `yaml:"words"`       // replaces the default vocabulary
	ExtraWords       []string `yaml:"extra_words"` // appended to the vocabulary
	Separators       string   `yaml:"separators"`
	NumericIsCommand *bool    `yaml:"numeric_is_command"`
	FuzzyThreshold   *int     `yaml:"fuzzy_threshold"`
	MaxMessageRunes  *int     `yaml:"max_message_runes"`
}

// LoadCatalog reads the rule catalog; an empty path yields the defaults
func LoadCatalog(path, selfName string) (usecase.RulesConfig, error) {
	if path == "" {
		cfg := usecase.DefaultRulesConfig()
		cfg.SelfName = selfName
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return usecase.RulesConfig{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := ParseCatalog(raw)
	if err != nil {
		return usecase.RulesConfig{}, err
	}
	fmt.Printf("[Catalog] Loaded rules from %s\n", path)
	return cat.ToRulesConfig(selfName)
}

// ParseCatalog decodes YAML strictly; unknown keys are errors
func ParseCatalog(raw []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Field: "catalog", Message: err.Error()}
	}
	return &cat, nil
}

// ToRulesConfig merges the catalog over the defaults and validates the policies
func (c *Catalog) ToRulesConfig(selfName string) (usecase.RulesConfig, error) {
	cfg := usecase.DefaultRulesConfig()
	cfg.SelfName = selfName

	cmd := c.Command
	if cmd.Words != nil {
		cfg.Command.Words = append([]string(nil), cmd.Words...)
	}
	cfg.Command.Words = append(cfg.Command.Words, cmd.ExtraWords...)
	if len(cfg.Command.Words) == 0 {
		return cfg, &ConfigError{Field: "command.words", Message: "vocabulary is empty"}
	}
	if cmd.Separators != "" {
		policy := usecase.SeparatorPolicy(cmd.Separators)
		if !policy.Valid() {
			return cfg, &ConfigError{Field: "command.separators", Message: fmt.Sprintf("unknown policy %q", cmd.Separators)}
		}
		cfg.Command.Separators = policy
	}
	if cmd.NumericIsCommand != nil {
		cfg.Command.NumericIsCommand = *cmd.NumericIsCommand
	}
	if cmd.FuzzyThreshold != nil {
		if *cmd.FuzzyThreshold < 0 {
			return cfg, &ConfigError{Field: "command.fuzzy_threshold", Message: "must not be negative"}
		}
		cfg.Command.FuzzyThreshold = *cmd.FuzzyThreshold
	}
	if cmd.MaxMessageRunes != nil {
		cfg.Command.MaxMessageRunes = *cmd.MaxMessageRunes
	}

	if c.SpamPhrases != nil {
		cfg.SpamPhrases = c.SpamPhrases
	}
	if c.URLAllowList != nil {
		cfg.URLAllowList = c.URLAllowList
	}
	if c.BotSenders != nil {
		cfg.BotSenders = c.BotSenders
	}
	if c.Lowercase != "" {
		policy := usecase.LowercasePolicy(c.Lowercase)
		if !policy.Valid() {
			return cfg, &ConfigError{Field: "lowercase", Message: fmt.Sprintf("unknown policy %q", c.Lowercase)}
		}
		cfg.Lowercase = policy
	}
	return cfg, nil
}
