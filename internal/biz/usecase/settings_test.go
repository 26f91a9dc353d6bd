package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// Mock implementations

type mockStorageRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	putErr  error
	puts    int
	deletes []string
}

func newMockStorageRepo() *mockStorageRepo {
	return &mockStorageRepo{data: make(map[string][]byte)}
}

func (m *mockStorageRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockStorageRepo) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = value
	return nil
}

func (m *mockStorageRepo) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.data, key)
	return nil
}

func (m *mockStorageRepo) Close() error {
	return nil
}

func (m *mockStorageRepo) stored(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(m.data[SettingsStorageKey], &out))
	return out
}

func newTestSettings(storage *mockStorageRepo) *SettingsUsecase {
	var uc *SettingsUsecase
	if storage == nil {
		uc = NewSettingsUsecase(nil)
	} else {
		uc = NewSettingsUsecase(storage)
	}
	uc.MustRegister(StandardSettings(DefaultCommandWords)...)
	return uc
}

func TestSettings_RegisterValidation(t *testing.T) {
	uc := NewSettingsUsecase(nil)

	tests := []struct {
		name string
		spec domain.SettingSpec
	}{
		{"missing name", domain.BoolSetting{Comment: "c", Category: domain.CategoryFilters}},
		{"missing comment", domain.BoolSetting{Name: "X", Category: domain.CategoryFilters}},
		{"unknown category", domain.BoolSetting{Name: "X", Comment: "c", Category: "misc"}},
		{"nil list default", domain.ListSetting{Name: "L", Comment: "c", Category: domain.CategoryCustoms}},
	}
	for _, tt := range tests {
		err := uc.Register(tt.spec)
		var settingErr *domain.SettingError
		assert.True(t, errors.As(err, &settingErr), tt.name)
	}

	require.NoError(t, uc.Register(domain.BoolSetting{Name: "X", Comment: "c", Category: domain.CategoryFilters}))
	assert.Error(t, uc.Register(domain.BoolSetting{Name: "X", Comment: "again", Category: domain.CategoryFilters}))

	assert.Panics(t, func() {
		uc.MustRegister(domain.BoolSetting{Name: "Y"})
	})
}

func TestSettings_RoundTrip(t *testing.T) {
	ctx := context.Background()
	uc := newTestSettings(nil)

	v, err := uc.Get(SettingFilterSmall)
	require.NoError(t, err)
	assert.False(t, v.Bool())

	require.NoError(t, uc.Set(ctx, SettingFilterSmall, domain.BoolValue(true)))
	assert.True(t, uc.Bool(SettingFilterSmall))

	require.NoError(t, uc.Set(ctx, SettingBannedWords, domain.ListValue([]string{"kappa", "bird jesus"})))
	assert.Equal(t, []string{"kappa", "bird jesus"}, uc.List(SettingBannedWords))

	require.NoError(t, uc.Reset(ctx, SettingFilterSmall))
	assert.False(t, uc.Bool(SettingFilterSmall))

	require.NoError(t, uc.ResetAll(ctx))
	assert.Equal(t, []string{}, uc.List(SettingBannedWords))
}

func TestSettings_Errors(t *testing.T) {
	ctx := context.Background()
	uc := newTestSettings(nil)

	err := uc.Set(ctx, SettingFilterSmall, domain.ListValue([]string{"x"}))
	assert.True(t, errors.Is(err, domain.ErrKindMismatch))

	err = uc.Set(ctx, "NoSuchSetting", domain.BoolValue(true))
	assert.True(t, errors.Is(err, domain.ErrUnknownSetting))

	_, err = uc.Get("NoSuchSetting")
	assert.True(t, errors.Is(err, domain.ErrUnknownSetting))

	assert.Error(t, uc.Observe("NoSuchSetting", func(domain.Value, domain.Value) {}))
	assert.True(t, errors.Is(uc.Describe("NoSuchSetting", "x"), domain.ErrUnknownSetting))
}

func TestSettings_Observers(t *testing.T) {
	ctx := context.Background()
	uc := newTestSettings(nil)

	var got [][2]bool
	require.NoError(t, uc.Observe(SettingFilterCommand, func(newV, oldV domain.Value) {
		got = append(got, [2]bool{newV.Bool(), oldV.Bool()})
	}))
	var names []string
	uc.ObserveAll(func(name string, _, _ domain.Value) {
		names = append(names, name)
	})

	require.NoError(t, uc.Set(ctx, SettingFilterCommand, domain.BoolValue(false)))
	require.NoError(t, uc.Reset(ctx, SettingFilterCommand))

	assert.Equal(t, [][2]bool{{false, true}, {true, false}}, got)
	assert.Equal(t, []string{SettingFilterCommand, SettingFilterCommand}, names)
}

func TestSettings_ObserverCanReadSettings(t *testing.T) {
	uc := newTestSettings(nil)
	var seen bool
	require.NoError(t, uc.Observe(SettingFilterLong, func(domain.Value, domain.Value) {
		seen = uc.Bool(SettingFilterLong)
	}))

	require.NoError(t, uc.Set(context.Background(), SettingFilterLong, domain.BoolValue(true)))
	assert.True(t, seen)
}

func TestSettings_PersistsOnlyOverrides(t *testing.T) {
	ctx := context.Background()
	storage := newMockStorageRepo()
	uc := newTestSettings(storage)

	require.NoError(t, uc.Set(ctx, SettingFilterCommand, domain.BoolValue(false)))
	require.NoError(t, uc.Set(ctx, SettingBannedWords, domain.ListValue([]string{"kappa"})))

	stored := storage.stored(t)
	assert.Len(t, stored, 2)
	assert.JSONEq(t, `false`, string(stored[SettingFilterCommand]))
	assert.JSONEq(t, `["kappa"]`, string(stored[SettingBannedWords]))

	require.NoError(t, uc.ResetAll(ctx))
	assert.Empty(t, storage.stored(t))
}

func TestSettings_SaveError(t *testing.T) {
	storage := newMockStorageRepo()
	storage.putErr = errors.New("disk full")
	uc := newTestSettings(storage)

	err := uc.Set(context.Background(), SettingFilterLong, domain.BoolValue(true))
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, uc.Bool(SettingFilterLong), "value applies even when saving fails")
}

func TestSettings_Load(t *testing.T) {
	storage := newMockStorageRepo()
	storage.data[SettingsStorageKey] = []byte(`{
		"TppFilterCommand": false,
		"TppBannedWords": ["kappa"],
		"TppFilterSmall": ["wrong kind"],
		"TppRemovedLongAgo": true
	}`)
	uc := newTestSettings(storage)

	require.NoError(t, uc.Load(context.Background()))
	assert.False(t, uc.Bool(SettingFilterCommand))
	assert.Equal(t, []string{"kappa"}, uc.List(SettingBannedWords))
	assert.False(t, uc.Bool(SettingFilterSmall), "wrong kind falls back to default")
	assert.True(t, uc.Bool(SettingFilterCyrillic), "missing key falls back to default")
	assert.Equal(t, 0, storage.puts, "loading the current format does not rewrite it")
}

func TestSettings_LoadCorrupt(t *testing.T) {
	storage := newMockStorageRepo()
	storage.data[SettingsStorageKey] = []byte(`not json`)
	uc := newTestSettings(storage)

	require.NoError(t, uc.Load(context.Background()))
	assert.True(t, uc.Bool(SettingFilterCommand))
}

func TestSettings_MigratesLegacyFormat(t *testing.T) {
	storage := newMockStorageRepo()
	storage.data[LegacyActiveKey] = []byte(`{"filters":["TppFilterSmall","TppGone"],"rewriters":[],"stylers":["TppNoColor"]}`)
	storage.data[LegacyPhrasesKey] = []byte(`["kappa","bird jesus"]`)
	uc := newTestSettings(storage)

	require.NoError(t, uc.Load(context.Background()))

	assert.True(t, uc.Bool(SettingFilterSmall))
	assert.True(t, uc.Bool(SettingNoColor))
	assert.True(t, uc.Bool(SettingBanCustomWords))
	assert.Equal(t, []string{"kappa", "bird jesus"}, uc.List(SettingBannedWords))
	assert.True(t, uc.Bool(SettingFilterCommand), "unlisted settings keep their defaults")

	_, legacy := storage.data[LegacyActiveKey]
	assert.False(t, legacy)
	_, legacy = storage.data[LegacyPhrasesKey]
	assert.False(t, legacy)

	stored := storage.stored(t)
	assert.JSONEq(t, `true`, string(stored[SettingFilterSmall]))
	assert.JSONEq(t, `["kappa","bird jesus"]`, string(stored[SettingBannedWords]))
}

func TestSettings_CurrentFormatWinsOverLegacy(t *testing.T) {
	storage := newMockStorageRepo()
	storage.data[SettingsStorageKey] = []byte(`{}`)
	storage.data[LegacyPhrasesKey] = []byte(`["kappa"]`)
	uc := newTestSettings(storage)

	require.NoError(t, uc.Load(context.Background()))
	assert.False(t, uc.Bool(SettingBanCustomWords))
	assert.Empty(t, uc.List(SettingBannedWords))
}

func TestSettings_Infos(t *testing.T) {
	uc := newTestSettings(nil)
	require.NoError(t, uc.Set(context.Background(), SettingFilterLong, domain.BoolValue(true)))

	infos := uc.Infos()
	require.Len(t, infos, len(StandardSettings(DefaultCommandWords)))
	assert.Equal(t, SettingFilterCommand, infos[0].Name)

	for _, info := range infos {
		if info.Name == SettingFilterLong {
			assert.True(t, info.Overridden)
			assert.True(t, info.Value.Bool())
			assert.False(t, info.Default.Bool())
		}
		if info.Name == SettingBannedWords {
			assert.Equal(t, "list", info.Kind)
			assert.Equal(t, domain.CategoryCustoms, info.Category)
		}
	}
}
