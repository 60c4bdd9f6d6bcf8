// Package wire extracts type-checked values from untrusted imported JSON.
// Every coercion fails with an error wrapping ErrInvalidDataExport so callers
// can reject just the offending entity.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidDataExport = errors.New("invalid data export")

// TimestampFormat is the fixed wire format for all timestamps, UTC with no
// timezone suffix.
const TimestampFormat = "2006-01-02 15:04:05.000000"

// Invalid builds an error wrapping ErrInvalidDataExport. Importers use it for
// semantic rejections beyond plain coercion failures.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrInvalidDataExport, fmt.Sprintf(format, args...))
}

// asInt accepts the integer representations that can reach this layer: native
// ints from internal callers and json.Number from decoding with UseNumber.
// Floats are only accepted if they are integral.
func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

type IdOpts struct {
	Min           int // minimum permitted value, 1 if zero
	SpecialValues []int
	NoConvert     bool // reject string values instead of converting them
}

func (o IdOpts) min() int {
	if o.Min == 0 {
		return 1
	}
	return o.Min
}

// Id extracts a mandatory identifier. Values below the minimum are still
// accepted if they appear in the special-value allow-list.
func Id(value interface{}, opts IdOpts) (int, error) {
	if value == nil {
		return 0, Invalid("missing ID")
	}
	id, ok := asInt(value)
	if !ok {
		s, isStr := value.(string)
		if !isStr || opts.NoConvert {
			return 0, Invalid("ID %q is not an integer", fmt.Sprint(value))
		}
		converted, err := strconv.Atoi(s)
		if err != nil {
			return 0, Invalid("ID %q could not be converted to an integer", s)
		}
		id = converted
	}
	if id < opts.min() {
		if slices.Contains(opts.SpecialValues, id) {
			return id, nil
		}
		return 0, Invalid("invalid ID %d, has to be at least %d (allowed special values: %v)", id, opts.min(), opts.SpecialValues)
	}
	return id, nil
}

// OptionalId returns nil when the value is absent.
func OptionalId(value interface{}, opts IdOpts) (*int, error) {
	if value == nil {
		return nil, nil
	}
	id, err := Id(value, opts)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func UUID(value interface{}) (uuid.UUID, error) {
	if value == nil {
		return uuid.UUID{}, Invalid("missing UUID")
	}
	s, ok := value.(string)
	if !ok {
		return uuid.UUID{}, Invalid("UUID %q is not a string", fmt.Sprint(value))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, Invalid("invalid UUID %q", s)
	}
	return id, nil
}

func OptionalUUID(value interface{}) (*uuid.UUID, error) {
	if value == nil {
		return nil, nil
	}
	id, err := UUID(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func Bool(value interface{}) (bool, error) {
	if value == nil {
		return false, Invalid("missing boolean")
	}
	b, ok := value.(bool)
	if !ok {
		return false, Invalid("invalid boolean %q", fmt.Sprint(value))
	}
	return b, nil
}

// BoolDefault returns the default when the value is absent.
func BoolDefault(value interface{}, def bool) (bool, error) {
	if value == nil {
		return def, nil
	}
	return Bool(value)
}

func OptionalBool(value interface{}) (*bool, error) {
	if value == nil {
		return nil, nil
	}
	b, err := Bool(value)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func Int(value interface{}) (int, error) {
	if value == nil {
		return 0, Invalid("missing integer")
	}
	i, ok := asInt(value)
	if !ok {
		return 0, Invalid("invalid integer %q", fmt.Sprint(value))
	}
	return i, nil
}

func OptionalInt(value interface{}) (*int, error) {
	if value == nil {
		return nil, nil
	}
	i, err := Int(value)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func Str(value interface{}) (string, error) {
	if value == nil {
		return "", Invalid("missing string")
	}
	s, ok := value.(string)
	if !ok {
		return "", Invalid("%q is not a string", fmt.Sprint(value))
	}
	return s, nil
}

func NonEmptyStr(value interface{}) (string, error) {
	s, err := Str(value)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", Invalid("empty string")
	}
	return s, nil
}

func OptionalStr(value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	s, err := Str(value)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func Dict(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, Invalid("missing dict")
	}
	d, ok := value.(map[string]interface{})
	if !ok {
		return nil, Invalid("invalid dict %q", fmt.Sprint(value))
	}
	return d, nil
}

// OptionalDict returns nil when the value is absent.
func OptionalDict(value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	return Dict(value)
}

func List(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, Invalid("missing list")
	}
	l, ok := value.([]interface{})
	if !ok {
		return nil, Invalid("invalid list %q", fmt.Sprint(value))
	}
	return l, nil
}

func OptionalList(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	return List(value)
}

// Translation accepts either a plain string, interpreted as English, or a
// dict of non-empty language codes to strings. Returns nil when absent.
func Translation(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		return map[string]string{"en": s}, nil
	}
	d, ok := value.(map[string]interface{})
	if !ok {
		return nil, Invalid("text is neither a dictionary nor string %q", fmt.Sprint(value))
	}
	translation := make(map[string]string, len(d))
	for langCode, text := range d {
		s, ok := text.(string)
		if !ok || langCode == "" {
			return nil, Invalid("invalid translation dict %q", fmt.Sprint(value))
		}
		translation[langCode] = s
	}
	return translation, nil
}

// UTCDatetime parses a mandatory timestamp and rejects timestamps further in
// the future than the given clock-skew tolerance.
func UTCDatetime(value interface{}, validTimeDelta time.Duration) (time.Time, error) {
	if value == nil {
		return time.Time{}, Invalid("missing timestamp")
	}
	s, ok := value.(string)
	if !ok {
		return time.Time{}, Invalid("invalid timestamp %q", fmt.Sprint(value))
	}
	t, err := time.Parse(TimestampFormat, s)
	if err != nil {
		return time.Time{}, Invalid("invalid timestamp %q", s)
	}
	t = t.UTC()
	if t.After(time.Now().UTC().Add(validTimeDelta)) {
		return time.Time{}, Invalid("timestamp is in the future %q", s)
	}
	return t, nil
}

func OptionalUTCDatetime(value interface{}, validTimeDelta time.Duration) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := UTCDatetime(value, validTimeDelta)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
