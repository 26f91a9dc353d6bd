package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil, DefaultRulesConfig())
	require.NoError(t, err)
	return e
}

func TestEngine_EndToEnd(t *testing.T) {
	e := newTestEngine(t)

	d := e.Process("DEMOCRACY", "viewer")
	assert.False(t, d.Visible)
	assert.Contains(t, d.MatchedFilters, SettingFilterCommand)

	d = e.Process("gg well played team", "viewer")
	assert.True(t, d.Visible)
	assert.Empty(t, d.MatchedFilters)
	assert.Equal(t, "gg well played team", d.Text)

	d = e.Process("heyy heyy heyy heyy check it out", "viewer")
	assert.Equal(t, "heyy check it out", d.Text)
}

func TestEngine_DefaultFilters(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		msg    string
		filter string
	}{
		{"guys we need to milk whitney", SettingFilterSpam},
		{"look ░░░░▒▒▒▒▌ ▀▒▀▐▄█", SettingFilterDrawing},
		{"привет всем ребята", SettingFilterCyrillic},
		{"up up left", SettingFilterCommand},
	}
	for _, tt := range tests {
		c := e.Classify(tt.msg, "viewer")
		assert.False(t, c.Visible, tt.msg)
		assert.Contains(t, c.MatchedFilters, tt.filter, tt.msg)
	}

	// Off by default
	assert.True(t, e.Classify("ヽ༼ຈل͜ຈ༽ﾉ raise your dongers", "viewer").Visible)
	assert.True(t, e.Classify("hello", "viewer").Visible)
}

func TestEngine_FilterToggleIsRetroactive(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	const msg = "DEMOCRACY"

	require.False(t, e.Classify(msg, "").Visible)
	require.NoError(t, e.SetSetting(ctx, SettingFilterCommand, domain.BoolValue(false)))
	assert.True(t, e.Classify(msg, "").Visible)

	require.NoError(t, e.ResetSetting(ctx, SettingFilterCommand))
	assert.False(t, e.Classify(msg, "").Visible)
}

func TestEngine_BanlistNeedsCompanionSetting(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	const msg = "kappa kappa chameleon"

	require.NoError(t, e.SetSetting(ctx, SettingBannedWords, domain.ListValue([]string{"kappa"})))
	assert.True(t, e.Classify(msg, "").Visible)

	require.NoError(t, e.SetSetting(ctx, SettingBanCustomWords, domain.BoolValue(true)))
	c := e.Classify(msg, "")
	assert.False(t, c.Visible)
	assert.Equal(t, []string{SettingBannedWords}, c.MatchedFilters)
}

func TestEngine_BotFilter(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultRulesConfig()
	cfg.SelfName = "Ash"
	e, err := NewEngine(nil, cfg)
	require.NoError(t, err)
	require.NoError(t, e.SetSetting(ctx, SettingFilterBots, domain.BoolValue(true)))

	assert.False(t, e.Classify("betting is now open for the match", "TPPInfoBot").Visible)
	assert.True(t, e.Classify("ash won the betting round", "TPPInfoBot").Visible)
	assert.True(t, e.Classify("betting is now open for the match", "viewer").Visible)
}

func TestEngine_Rewrite(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	assert.Equal(t, "hello there zalgo", e.Rewrite("HELLO THERE Z\u0334A\u0337L\u0336G\u0338O"))

	require.NoError(t, e.SetSetting(ctx, SettingConvertAllcaps, domain.BoolValue(false)))
	assert.Equal(t, "HELLO THERE", e.Rewrite("HELLO THERE"))
	assert.Equal(t, []string{SettingRewriteDuplicates, SettingMopUpDrinks, SettingConvertAllcaps}, e.RewriterNames())
}

func TestEngine_PassesAllFilters(t *testing.T) {
	e := newTestEngine(t)

	for _, text := range []string{"DEMOCRACY", "hello there", "!move up", "a perfectly ordinary chat line"} {
		assert.Equal(t, e.Classify(text, "viewer").Visible, e.PassesAllFilters(text, "viewer"), text)
	}
	assert.False(t, e.PassesAllFilters("DEMOCRACY", "viewer"))
	assert.True(t, e.PassesAllFilters("a perfectly ordinary chat line", "viewer"))

	names := e.FilterNames()
	assert.Contains(t, names, SettingFilterCommand)
	assert.Contains(t, names, SettingFilterLinks)
	assert.Equal(t, SettingFilterCommand, names[0])
}

func TestEngine_AdminNotice(t *testing.T) {
	clock := newFakeClock()
	e, err := NewEngine(nil, DefaultRulesConfig(), WithClock(clock.Now))
	require.NoError(t, err)

	e.SendAttempted("hello")
	st := e.FeedAdminNotice("You are now in slow mode, messages limited to 1 per 5 seconds")
	assert.Equal(t, int64(5000), st.WaitMillis)

	clock.Advance(2 * time.Second)
	d := e.OnIncomingMessage("This room is now in slow mode. You may send messages every 5 seconds.", "jtv", true)
	assert.True(t, d.Admin)
	assert.False(t, d.Visible, "redundant notice is hidden")

	assert.Equal(t, domain.ReasonSlowmode, e.SlowmodeStatus("").Reason)
	assert.Equal(t, 5*time.Second, e.SlowmodeState().RateLimit)
}

func TestEngine_ApplyRules(t *testing.T) {
	e := newTestEngine(t)

	cfg := DefaultRulesConfig()
	cfg.Command.Words = []string{"jump", "run"}
	require.NoError(t, e.ApplyRules(cfg))
	assert.True(t, e.IsCommand("jump run"))
	assert.False(t, e.IsCommand("democracy"))

	bad := DefaultRulesConfig()
	bad.Command.Words = nil
	assert.Error(t, e.ApplyRules(bad))
	assert.True(t, e.IsCommand("jump"), "failed reload keeps the previous rules")

	var long string
	for _, info := range e.Settings() {
		if info.Name == SettingFilterCommand {
			long = info.LongComment
		}
	}
	assert.Contains(t, long, "jump")
	assert.Contains(t, long, "run")
	assert.NotContains(t, long, "democracy")
}

func TestEngine_Stylers(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.ActiveStylers())

	require.NoError(t, e.SetSetting(context.Background(), SettingNoColor, domain.BoolValue(true)))
	assert.Equal(t, []string{SettingNoColor}, e.ActiveStylers())
}

func TestEngine_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorageRepo()

	first, err := NewEngine(storage, DefaultRulesConfig())
	require.NoError(t, err)
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.SetSetting(ctx, SettingFilterLong, domain.BoolValue(true)))

	second, err := NewEngine(storage, DefaultRulesConfig())
	require.NoError(t, err)
	require.NoError(t, second.Load(ctx))

	v, err := second.GetSetting(SettingFilterLong)
	require.NoError(t, err)
	assert.True(t, v.Bool())
}

func TestEngine_InvalidRules(t *testing.T) {
	cfg := DefaultRulesConfig()
	cfg.Lowercase = "shout"
	_, err := NewEngine(nil, cfg)
	assert.Error(t, err)
}
