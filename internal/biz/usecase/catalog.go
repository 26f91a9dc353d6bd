package usecase

import (
	"fmt"
	"strings"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// Setting names. They double as filter and rewriter names.
const (
	SettingFilterCommand  = "TppFilterCommand"
	SettingFilterSpam     = "TppFilterMisty"
	SettingFilterLinks    = "TppFilterLinks"
	SettingFilterDrawing  = "TppFilterAscii"
	SettingFilterCyrillic = "TppFilterCyrillic"
	SettingFilterDonger   = "TppFilterDonger"
	SettingFilterSmall    = "TppFilterSmall"
	SettingFilterLong     = "TppFilterLong"
	SettingFilterBots     = "TppFilterBots"

	SettingRewriteDuplicates = "TppRewriteDuplicates"
	SettingMopUpDrinks       = "TppMopUpDrinks"
	SettingConvertAllcaps    = "TppConvertAllcaps"
	SettingHideEmoticons     = "TppHideEmoticons"
	SettingNoColor           = "TppNoColor"

	SettingBanCustomWords = "TppBanCustomWords"
	SettingBannedWords    = "TppBannedWords"
)

// StylerSettings are presentation toggles applied by the host, not by the engine
var StylerSettings = []string{SettingHideEmoticons, SettingNoColor}

// DefaultURLAllowList are link fragments that never trigger the link filter
var DefaultURLAllowList = []string{"twitch.tv", "reddit.com/r/twitchplayspokemon", "youtube.com", "youtu.be"}

// DefaultBotSenders are accounts whose broadcasts the bot filter hides
var DefaultBotSenders = []string{"tppinfobot", "tppbankbot", "tpp"}

func commandLongComment(words []string) string {
	return strings.Join(words, ", ")
}

// StandardSettings returns the built-in setting declarations
func StandardSettings(words []string) []domain.SettingSpec {
	return []domain.SettingSpec{
		domain.BoolSetting{
			Name:        SettingFilterCommand,
			Comment:     "Emulator commands",
			LongComment: commandLongComment(words),
			Category:    domain.CategoryFilters,
			Default:     true,
		},
		domain.BoolSetting{
			Name:        SettingFilterSpam,
			Comment:     "Misty meme",
			LongComment: "Guys we need to milk Whitney",
			Category:    domain.CategoryFilters,
			Default:     true,
		},
		domain.BoolSetting{
			Name:        SettingFilterLinks,
			Comment:     "Unknown links",
			LongComment: "Hide messages linking outside the allow-list",
			Category:    domain.CategoryFilters,
			Default:     false,
		},
		domain.BoolSetting{
			Name:        SettingFilterDrawing,
			Comment:     "Blocky Drawings",
			LongComment: "Stuff like this: ░░░░▒▒▒▒▌ ▀▒▀▐▄█",
			Category:    domain.CategoryFilters,
			Default:     true,
		},
		domain.BoolSetting{
			Name:     SettingFilterCyrillic,
			Comment:  "Cyrillic",
			Category: domain.CategoryFilters,
			Default:  true,
		},
		domain.BoolSetting{
			Name:        SettingFilterDonger,
			Comment:     "Dongers",
			LongComment: "ヽ༼ຈل͜ຈ༽ﾉ",
			Category:    domain.CategoryFilters,
			Default:     false,
		},
		domain.BoolSetting{
			Name:     SettingFilterSmall,
			Comment:  "One-word messages",
			Category: domain.CategoryFilters,
			Default:  false,
		},
		domain.BoolSetting{
			Name:        SettingFilterLong,
			Comment:     "Overly long messages",
			LongComment: fmt.Sprintf("Hide messages over %d characters (around 4 lines)", MaxMessageRunes),
			Category:    domain.CategoryFilters,
			Default:     false,
		},
		domain.BoolSetting{
			Name:        SettingFilterBots,
			Comment:     "Bot broadcasts",
			LongComment: "Hide bot messages that do not mention you",
			Category:    domain.CategoryFilters,
			Default:     false,
		},
		domain.BoolSetting{
			Name:     SettingRewriteDuplicates,
			Comment:  "Copy pasted repetitions",
			Category: domain.CategoryRewriters,
			Default:  true,
		},
		domain.BoolSetting{
			Name:     SettingMopUpDrinks,
			Comment:  "Mop up spilled drinks",
			Category: domain.CategoryRewriters,
			Default:  true,
		},
		domain.BoolSetting{
			Name:     SettingConvertAllcaps,
			Comment:  "Lowercase everything",
			Category: domain.CategoryVisual,
			Default:  true,
		},
		domain.BoolSetting{
			Name:     SettingHideEmoticons,
			Comment:  "Hide emoticons",
			Category: domain.CategoryVisual,
			Default:  false,
		},
		domain.BoolSetting{
			Name:        SettingNoColor,
			Comment:     "Uncolor messages",
			LongComment: "Remove color from messages created with the /me command",
			Category:    domain.CategoryVisual,
			Default:     false,
		},
		domain.BoolSetting{
			Name:     SettingBanCustomWords,
			Comment:  "Activate custom banlist",
			Category: domain.CategoryCustoms,
			Default:  false,
		},
		domain.ListSetting{
			Name:        SettingBannedWords,
			Comment:     "Banned Words",
			LongComment: "If the custom banlist is activated, these messages will be hidden",
			Category:    domain.CategoryCustoms,
			Default:     []string{},
		},
	}
}

// RulesConfig holds the data-driven parts of the standard filters
type RulesConfig struct {
	Command      CommandConfig
	SpamPhrases  []string
	URLAllowList []string
	BotSenders   []string
	SelfName     string // Bot messages mentioning this name stay visible
	Lowercase    LowercasePolicy
}

// DefaultRulesConfig returns the built-in rules
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		Command:      DefaultCommandConfig(),
		SpamPhrases:  append([]string(nil), DefaultSpamPhrases...),
		URLAllowList: append([]string(nil), DefaultURLAllowList...),
		BotSenders:   append([]string(nil), DefaultBotSenders...),
		Lowercase:    LowercaseSkipURLs,
	}
}

// rules is the compiled, immutable form of RulesConfig
type rules struct {
	commands  *CommandClassifier
	spam      []string
	allow     []string
	bots      map[string]struct{}
	self      string
	lowercase LowercasePolicy
}

func compileRules(cfg RulesConfig) (*rules, error) {
	commands, err := NewCommandClassifier(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to build command classifier: %w", err)
	}
	if cfg.Lowercase == "" {
		cfg.Lowercase = LowercaseSkipURLs
	}
	if !cfg.Lowercase.Valid() {
		return nil, fmt.Errorf("unknown lowercase policy %q", cfg.Lowercase)
	}

	r := &rules{
		commands:  commands,
		spam:      lowerAll(cfg.SpamPhrases),
		allow:     lowerAll(cfg.URLAllowList),
		bots:      make(map[string]struct{}, len(cfg.BotSenders)),
		self:      strings.ToLower(strings.TrimSpace(cfg.SelfName)),
		lowercase: cfg.Lowercase,
	}
	for _, b := range lowerAll(cfg.BotSenders) {
		r.bots[b] = struct{}{}
	}
	return r, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
