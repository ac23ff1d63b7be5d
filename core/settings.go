package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Settings keys read by the composition layer.
const (
	SettingWalletType    = "wallet.type"
	SettingWalletName    = "wallet.name"
	SettingTimingEnabled = "timing.enabled"
	SettingTimingLogFile = "timing.log.file"
	SettingEnforceTyping = "injector.enforce_typing"
)

// Settings is an immutable, ordered key/value scope. The zero value is an
// empty scope ready to use.
type Settings struct {
	keys   []string
	values map[string]any
}

// NewSettings copies values into a new scope. Keys are ordered
// lexicographically since map iteration carries no order of its own.
func NewSettings(values map[string]any) Settings {
	return Settings{}.Extend(values)
}

func (s Settings) Get(key string) (any, bool) {
	if s.values == nil {
		return nil, false
	}
	value, ok := s.values[strings.TrimSpace(key)]
	return value, ok
}

// Lookup is Get under the name backends use for configuration lookups.
func (s Settings) Lookup(key string) (any, bool) {
	return s.Get(key)
}

func (s Settings) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// GetBool returns def only when key is absent.
func (s Settings) GetBool(key string, def bool) (bool, error) {
	value, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err != nil {
			return false, settingMismatch(key, "bool", value)
		}
		return parsed, nil
	default:
		return false, settingMismatch(key, "bool", value)
	}
}

// GetInt returns def only when key is absent.
func (s Settings) GetInt(key string, def int) (int, error) {
	value, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	switch typed := value.(type) {
	case int:
		return typed, nil
	case int8:
		return int(typed), nil
	case int16:
		return int(typed), nil
	case int32:
		return int(typed), nil
	case int64:
		if typed < math.MinInt || typed > math.MaxInt {
			return 0, settingMismatch(key, "int", value)
		}
		return int(typed), nil
	case uint:
		if typed > math.MaxInt {
			return 0, settingMismatch(key, "int", value)
		}
		return int(typed), nil
	case uint8:
		return int(typed), nil
	case uint16:
		return int(typed), nil
	case uint32:
		if uint64(typed) > math.MaxInt {
			return 0, settingMismatch(key, "int", value)
		}
		return int(typed), nil
	case uint64:
		if typed > math.MaxInt {
			return 0, settingMismatch(key, "int", value)
		}
		return int(typed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, settingMismatch(key, "int", value)
		}
		return parsed, nil
	default:
		return 0, settingMismatch(key, "int", value)
	}
}

// GetString returns def only when key is absent.
func (s Settings) GetString(key string, def string) (string, error) {
	value, ok := s.Get(key)
	if !ok {
		return def, nil
	}
	switch typed := value.(type) {
	case string:
		return typed, nil
	case fmt.Stringer:
		return typed.String(), nil
	default:
		return "", settingMismatch(key, "string", value)
	}
}

// With returns a new scope with key set; the receiver is left untouched.
func (s Settings) With(key string, value any) Settings {
	key = strings.TrimSpace(key)
	if key == "" {
		return s
	}
	next := s.clone(1)
	next.set(key, value)
	return next
}

// Extend returns a new scope with values merged on top of the receiver.
func (s Settings) Extend(values map[string]any) Settings {
	if len(values) == 0 {
		return s.clone(0)
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		if strings.TrimSpace(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	next := s.clone(len(keys))
	for _, key := range keys {
		next.set(strings.TrimSpace(key), values[key])
	}
	return next
}

func (s Settings) Keys() []string {
	return append([]string(nil), s.keys...)
}

func (s Settings) Len() int {
	return len(s.keys)
}

func (s Settings) Map() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, key := range s.keys {
		out[key] = s.values[key]
	}
	return out
}

func (s Settings) clone(extra int) Settings {
	next := Settings{
		keys:   make([]string, len(s.keys), len(s.keys)+extra),
		values: make(map[string]any, len(s.keys)+extra),
	}
	copy(next.keys, s.keys)
	for key, value := range s.values {
		next.values[key] = value
	}
	return next
}

func (s *Settings) set(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

func settingMismatch(key string, want string, value any) error {
	return newError(
		ErrTypeMismatch,
		"",
		fmt.Sprintf("setting %q holds %T, want %s", strings.TrimSpace(key), value, want),
		nil,
	)
}
