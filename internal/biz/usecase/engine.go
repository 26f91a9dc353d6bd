package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
)

// EngineOption customizes an Engine
type EngineOption func(*engineOptions)

type engineOptions struct {
	now      func() time.Time
	slowmode SlowmodeConfig
}

// WithClock replaces time.Now, used by the slowmode tracker
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.now = now }
}

// WithSlowmodeConfig overrides the slowmode defaults
func WithSlowmodeConfig(cfg SlowmodeConfig) EngineOption {
	return func(o *engineOptions) { o.slowmode = cfg }
}

// Engine owns the settings, filters, rewriters and slowmode tracker of one chat view
type Engine struct {
	settings  *SettingsUsecase
	filters   *FilterRegistry
	rewriters *RewriterPipeline
	slowmode  *SlowmodeTracker
	rules     atomic.Pointer[rules]
}

// NewEngine builds an engine with the standard catalog.
// A nil storage keeps settings in memory only.
func NewEngine(storage repo.StorageRepo, cfg RulesConfig, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{now: time.Now, slowmode: DefaultSlowmodeConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		settings:  NewSettingsUsecase(storage),
		filters:   NewFilterRegistry(),
		rewriters: NewRewriterPipeline(),
		slowmode:  NewSlowmodeTracker(o.slowmode, o.now),
	}
	e.rules.Store(r)

	if err := e.registerStandard(r.commands.Words()); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) registerStandard(words []string) error {
	for _, spec := range StandardSettings(words) {
		if err := e.settings.Register(spec); err != nil {
			return fmt.Errorf("failed to register setting: %w", err)
		}
	}

	on := func(name string) func() bool {
		return func() bool { return e.settings.Bool(name) }
	}

	filters := []struct {
		name   string
		pred   Predicate
		active func() bool
	}{
		{SettingFilterCommand, func(text, _ string) bool {
			return e.current().commands.IsCommand(text)
		}, on(SettingFilterCommand)},
		{SettingFilterSpam, func(text, _ string) bool {
			return SpamScore(text, e.current().spam) >= SpamScoreThreshold
		}, on(SettingFilterSpam)},
		{SettingFilterLinks, func(text, _ string) bool {
			return HasDisallowedURL(text, e.current().allow)
		}, on(SettingFilterLinks)},
		{SettingFilterDrawing, func(text, _ string) bool {
			return CountDrawing(text) > DrawingCharThreshold
		}, on(SettingFilterDrawing)},
		{SettingFilterCyrillic, func(text, _ string) bool {
			return HasCyrillic(text)
		}, on(SettingFilterCyrillic)},
		{SettingFilterDonger, func(text, _ string) bool {
			return CountEmojiLike(text) > EmojiThreshold
		}, on(SettingFilterDonger)},
		{SettingFilterSmall, func(text, _ string) bool {
			return IsTooSmall(text)
		}, on(SettingFilterSmall)},
		{SettingFilterLong, func(text, _ string) bool {
			return IsTooLong(text)
		}, on(SettingFilterLong)},
		{SettingBannedWords, func(text, _ string) bool {
			return ContainsBannedPhrase(text, e.settings.List(SettingBannedWords))
		}, on(SettingBanCustomWords)},
		{SettingFilterBots, func(text, sender string) bool {
			r := e.current()
			return IsBotBroadcast(sender, text, r.bots, r.self)
		}, on(SettingFilterBots)},
	}
	for _, f := range filters {
		if err := e.filters.Register(f.name, f.pred, f.active); err != nil {
			return err
		}
	}

	rewriters := []struct {
		name string
		fn   Transform
	}{
		{SettingRewriteDuplicates, CollapseRepeats},
		{SettingMopUpDrinks, StripCombiningMarks},
		{SettingConvertAllcaps, func(text string) string {
			return Lowercase(text, e.current().lowercase)
		}},
	}
	for _, rw := range rewriters {
		if err := e.rewriters.Register(rw.name, rw.fn, on(rw.name)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) current() *rules {
	return e.rules.Load()
}

// ApplyRules swaps the data-driven rules; settings are kept
func (e *Engine) ApplyRules(cfg RulesConfig) error {
	r, err := compileRules(cfg)
	if err != nil {
		return err
	}
	e.rules.Store(r)
	if err := e.settings.Describe(SettingFilterCommand, commandLongComment(r.commands.Words())); err != nil {
		return err
	}
	fmt.Printf("[Engine] Rules updated: %d command words, %d spam phrases, %d allowed link fragments\n",
		len(r.commands.Words()), len(r.spam), len(r.allow))
	return nil
}

// Load restores persisted settings
func (e *Engine) Load(ctx context.Context) error {
	return e.settings.Load(ctx)
}

// ========== Classification ==========

// Classify decides visibility from the active filters
func (e *Engine) Classify(text, sender string) domain.Classification {
	if e.PassesAllFilters(text, sender) {
		return domain.Classification{Visible: true, MatchedFilters: []string{}}
	}
	matched := e.filters.Evaluate(text, sender)
	if matched == nil {
		matched = []string{}
	}
	return domain.Classification{Visible: len(matched) == 0, MatchedFilters: matched}
}

// PassesAllFilters reports visibility without collecting filter names
func (e *Engine) PassesAllFilters(text, sender string) bool {
	return e.filters.PassesAll(text, sender)
}

// IsCommand runs only the command classifier, regardless of settings
func (e *Engine) IsCommand(text string) bool {
	return e.current().commands.IsCommand(text)
}

// Rewrite applies the active rewriters
func (e *Engine) Rewrite(text string) string {
	return e.rewriters.Rewrite(text)
}

// Process classifies the raw text and rewrites it for display
func (e *Engine) Process(text, sender string) domain.Decision {
	c := e.Classify(text, sender)
	return domain.Decision{
		Visible:        c.Visible,
		MatchedFilters: c.MatchedFilters,
		Text:           e.Rewrite(text),
	}
}

// OnIncomingMessage handles a chat line or, for admin notices, feeds the slowmode tracker
func (e *Engine) OnIncomingMessage(text, sender string, admin bool) domain.Decision {
	if !admin {
		return e.Process(text, sender)
	}
	out := e.HandleAdminNotice(text)
	return domain.Decision{
		Visible:        !out.Hidden,
		MatchedFilters: []string{},
		Text:           out.Display,
		Admin:          true,
	}
}

// FilterNames lists the registered filters
func (e *Engine) FilterNames() []string {
	return e.filters.Names()
}

// RewriterNames lists the registered rewriters in pipeline order
func (e *Engine) RewriterNames() []string {
	return e.rewriters.Names()
}

// ========== Settings ==========

// GetSetting returns the effective value
func (e *Engine) GetSetting(name string) (domain.Value, error) {
	return e.settings.Get(name)
}

// SetSetting overrides and persists a value
func (e *Engine) SetSetting(ctx context.Context, name string, value domain.Value) error {
	return e.settings.Set(ctx, name, value)
}

// ResetSetting reverts a setting to its default
func (e *Engine) ResetSetting(ctx context.Context, name string) error {
	return e.settings.Reset(ctx, name)
}

// ResetAllSettings reverts every setting
func (e *Engine) ResetAllSettings(ctx context.Context) error {
	return e.settings.ResetAll(ctx)
}

// OnSettingChanged observes one setting
func (e *Engine) OnSettingChanged(name string, fn SettingObserver) error {
	return e.settings.Observe(name, fn)
}

// OnAnySettingChanged observes every setting
func (e *Engine) OnAnySettingChanged(fn ChangeObserver) {
	e.settings.ObserveAll(fn)
}

// Settings returns all settings for menus
func (e *Engine) Settings() []domain.SettingInfo {
	return e.settings.Infos()
}

// ActiveStylers lists the enabled presentation toggles
func (e *Engine) ActiveStylers() []string {
	active := []string{}
	for _, name := range StylerSettings {
		if e.settings.Bool(name) {
			active = append(active, name)
		}
	}
	return active
}

// ========== Slowmode ==========

// SendAttempted records an outgoing message
func (e *Engine) SendAttempted(text string) {
	e.slowmode.SendAttempted(text)
}

// FeedAdminNotice parses an admin notice and returns the resulting status
func (e *Engine) FeedAdminNotice(text string) domain.SlowmodeStatus {
	return e.slowmode.Feed(text).Status
}

// HandleAdminNotice is FeedAdminNotice with the display decision
func (e *Engine) HandleAdminNotice(text string) domain.NoticeOutcome {
	return e.slowmode.Feed(text)
}

// SlowmodeStatus returns send eligibility for a draft
func (e *Engine) SlowmodeStatus(draft string) domain.SlowmodeStatus {
	return e.slowmode.Status(draft)
}

// SlowmodeState returns the inferred slowmode state
func (e *Engine) SlowmodeState() domain.SlowmodeState {
	return e.slowmode.State()
}
