package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
	"github.com/DevRickLin/tpp-chat-filter/internal/biz/repo"
)

// Storage keys
const (
	SettingsStorageKey = "tpp-chat-filter-settings"
	LegacyActiveKey    = "tpp-custom-filter-active"
	LegacyPhrasesKey   = "tpp-custom-filter-phrases"
)

// SettingObserver receives the new and previous effective values
type SettingObserver func(newValue, oldValue domain.Value)

// ChangeObserver receives every setting change
type ChangeObserver func(name string, newValue, oldValue domain.Value)

type settingEntry struct {
	spec      domain.SettingSpec
	current   *domain.Value // nil until explicitly set
	observers []SettingObserver
	long      *string // overrides the declared long comment
}

func (e *settingEntry) effective() domain.Value {
	if e.current != nil {
		return *e.current
	}
	return e.spec.DefaultValue()
}

// SettingsUsecase owns the named settings, their observers and persistence
type SettingsUsecase struct {
	storage repo.StorageRepo // nil disables persistence

	mu      sync.RWMutex
	entries map[string]*settingEntry
	order   []string
	global  []ChangeObserver

	saveMu sync.Mutex
}

// NewSettingsUsecase creates an empty settings store
func NewSettingsUsecase(storage repo.StorageRepo) *SettingsUsecase {
	return &SettingsUsecase{
		storage: storage,
		entries: make(map[string]*settingEntry),
	}
}

// Register validates and adds a setting declaration
func (uc *SettingsUsecase) Register(spec domain.SettingSpec) error {
	if err := domain.ValidateSetting(spec); err != nil {
		return err
	}
	name := spec.Meta().Name

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, dup := uc.entries[name]; dup {
		return &domain.SettingError{Setting: name, Message: "already registered"}
	}
	uc.entries[name] = &settingEntry{spec: spec}
	uc.order = append(uc.order, name)
	return nil
}

// MustRegister registers settings and panics on the first invalid one
func (uc *SettingsUsecase) MustRegister(specs ...domain.SettingSpec) {
	for _, spec := range specs {
		if err := uc.Register(spec); err != nil {
			panic(err)
		}
	}
}

// Get returns the effective value
func (uc *SettingsUsecase) Get(name string) (domain.Value, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	e, ok := uc.entries[name]
	if !ok {
		return domain.Value{}, unknownSetting(name)
	}
	return e.effective(), nil
}

// Bool returns a boolean setting, false when unknown
func (uc *SettingsUsecase) Bool(name string) bool {
	v, err := uc.Get(name)
	return err == nil && v.Bool()
}

// List returns a list setting, nil when unknown
func (uc *SettingsUsecase) List(name string) []string {
	v, err := uc.Get(name)
	if err != nil {
		return nil
	}
	return v.List()
}

// Set overrides a value, notifies observers and persists
func (uc *SettingsUsecase) Set(ctx context.Context, name string, value domain.Value) error {
	if err := uc.update(name, &value); err != nil {
		return err
	}
	return uc.save(ctx)
}

// Reset clears the override so the default applies again
func (uc *SettingsUsecase) Reset(ctx context.Context, name string) error {
	if err := uc.update(name, nil); err != nil {
		return err
	}
	return uc.save(ctx)
}

// ResetAll clears every override
func (uc *SettingsUsecase) ResetAll(ctx context.Context) error {
	for _, name := range uc.Names() {
		if err := uc.update(name, nil); err != nil {
			return err
		}
	}
	return uc.save(ctx)
}

// Observe registers a callback for one setting
func (uc *SettingsUsecase) Observe(name string, fn SettingObserver) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	e, ok := uc.entries[name]
	if !ok {
		return unknownSetting(name)
	}
	e.observers = append(e.observers, fn)
	return nil
}

// ObserveAll registers a callback for every setting
func (uc *SettingsUsecase) ObserveAll(fn ChangeObserver) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.global = append(uc.global, fn)
}

// Names returns setting names in registration order
func (uc *SettingsUsecase) Names() []string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]string, len(uc.order))
	copy(out, uc.order)
	return out
}

// Describe replaces the menu description of a registered setting
func (uc *SettingsUsecase) Describe(name, longComment string) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	e, ok := uc.entries[name]
	if !ok {
		return unknownSetting(name)
	}
	e.long = &longComment
	return nil
}

// Infos returns a snapshot of all settings for menus
func (uc *SettingsUsecase) Infos() []domain.SettingInfo {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	infos := make([]domain.SettingInfo, 0, len(uc.order))
	for _, name := range uc.order {
		e := uc.entries[name]
		meta := e.spec.Meta()
		long := meta.LongComment
		if e.long != nil {
			long = *e.long
		}
		infos = append(infos, domain.SettingInfo{
			Name:        meta.Name,
			Comment:     meta.Comment,
			LongComment: long,
			Category:    meta.Category,
			Kind:        meta.Kind.String(),
			Default:     e.spec.DefaultValue(),
			Value:       e.effective(),
			Overridden:  e.current != nil,
		})
	}
	return infos
}

// update applies a value (nil resets) and runs observers outside the lock
func (uc *SettingsUsecase) update(name string, value *domain.Value) error {
	uc.mu.Lock()
	e, ok := uc.entries[name]
	if !ok {
		uc.mu.Unlock()
		return unknownSetting(name)
	}
	kind := e.spec.Meta().Kind
	if value != nil && value.Kind() != kind {
		uc.mu.Unlock()
		return &domain.SettingError{
			Setting: name,
			Message: fmt.Sprintf("expected %s value, got %s", kind, value.Kind()),
			Err:     domain.ErrKindMismatch,
		}
	}

	old := e.effective()
	if value == nil {
		e.current = nil
	} else {
		v := *value
		e.current = &v
	}
	current := e.effective()
	observers := append([]SettingObserver(nil), e.observers...)
	global := append([]ChangeObserver(nil), uc.global...)
	uc.mu.Unlock()

	for _, fn := range observers {
		fn(current, old)
	}
	for _, fn := range global {
		fn(name, current, old)
	}
	return nil
}

// overrides returns the explicitly set values
func (uc *SettingsUsecase) overrides() map[string]domain.Value {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make(map[string]domain.Value)
	for name, e := range uc.entries {
		if e.current != nil {
			out[name] = *e.current
		}
	}
	return out
}

func (uc *SettingsUsecase) save(ctx context.Context) error {
	if uc.storage == nil {
		return nil
	}
	uc.saveMu.Lock()
	defer uc.saveMu.Unlock()

	data, err := json.Marshal(uc.overrides())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := uc.storage.Put(ctx, SettingsStorageKey, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ========== Loading ==========

// legacyActive is the old per-kind list of enabled setting names
type legacyActive struct {
	Filters   []string `json:"filters"`
	Rewriters []string `json:"rewriters"`
	Stylers   []string `json:"stylers"`
}

// Load replaces every value with the persisted one, migrating the legacy format if needed
func (uc *SettingsUsecase) Load(ctx context.Context) error {
	if uc.storage == nil {
		return nil
	}

	persisted, migrated, err := uc.readPersisted(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]struct{})
	for _, name := range uc.Names() {
		known[name] = struct{}{}
		v, ok := persisted[name]
		if !ok {
			_ = uc.update(name, nil)
			continue
		}
		if err := uc.update(name, &v); err != nil {
			fmt.Printf("[Settings] Ignoring stored value for %s: %v\n", name, err)
			_ = uc.update(name, nil)
		}
	}
	for name := range persisted {
		if _, ok := known[name]; !ok {
			fmt.Printf("[Settings] Ignoring unknown stored setting %s\n", name)
		}
	}

	if !migrated {
		return nil
	}
	fmt.Printf("[Settings] Migrated %d legacy settings\n", len(persisted))
	if err := uc.save(ctx); err != nil {
		return err
	}
	for _, key := range []string{LegacyActiveKey, LegacyPhrasesKey} {
		if err := uc.storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete legacy key %s: %w", key, err)
		}
	}
	return nil
}

func (uc *SettingsUsecase) readPersisted(ctx context.Context) (map[string]domain.Value, bool, error) {
	data, ok, err := uc.storage.Get(ctx, SettingsStorageKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read settings: %w", err)
	}
	if ok {
		return decodeSettings(data), false, nil
	}
	return uc.readLegacy(ctx)
}

func decodeSettings(data []byte) map[string]domain.Value {
	out := make(map[string]domain.Value)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Printf("[Settings] Stored settings are corrupt, using defaults: %v\n", err)
		return out
	}
	for name, msg := range raw {
		var v domain.Value
		if err := json.Unmarshal(msg, &v); err != nil {
			fmt.Printf("[Settings] Skipping %s: %v\n", name, err)
			continue
		}
		out[name] = v
	}
	return out
}

func (uc *SettingsUsecase) readLegacy(ctx context.Context) (map[string]domain.Value, bool, error) {
	out := make(map[string]domain.Value)
	migrated := false

	data, ok, err := uc.storage.Get(ctx, LegacyActiveKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read legacy filters: %w", err)
	}
	if ok {
		migrated = true
		var active legacyActive
		if err := json.Unmarshal(data, &active); err != nil {
			fmt.Printf("[Settings] Legacy filter list is corrupt: %v\n", err)
		}
		enabled := make(map[string]struct{})
		for _, list := range [][]string{active.Filters, active.Rewriters, active.Stylers} {
			for _, name := range list {
				enabled[name] = struct{}{}
			}
		}
		for _, name := range uc.Names() {
			if _, on := enabled[name]; on {
				out[name] = domain.BoolValue(true)
			}
		}
	}

	data, ok, err = uc.storage.Get(ctx, LegacyPhrasesKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read legacy phrases: %w", err)
	}
	if ok {
		migrated = true
		var phrases []string
		if err := json.Unmarshal(data, &phrases); err != nil {
			fmt.Printf("[Settings] Legacy phrase list is corrupt: %v\n", err)
		} else if phrases != nil {
			out[SettingBanCustomWords] = domain.BoolValue(true)
			out[SettingBannedWords] = domain.ListValue(phrases)
		}
	}
	return out, migrated, nil
}

func unknownSetting(name string) error {
	return &domain.SettingError{Setting: name, Message: "not registered", Err: domain.ErrUnknownSetting}
}
