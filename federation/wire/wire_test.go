package wire

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestId(t *testing.T) {
	id, err := Id(json.Number("7"), IdOpts{})
	if err != nil || id != 7 {
		t.Fatalf("expected 7, got %d (%v)", id, err)
	}

	id, err = Id("12", IdOpts{})
	if err != nil || id != 12 {
		t.Fatalf("expected 12, got %d (%v)", id, err)
	}

	if _, err := Id("12", IdOpts{NoConvert: true}); err == nil {
		t.Fatal("string should be rejected with NoConvert")
	}

	if _, err := Id(json.Number("0"), IdOpts{}); err == nil {
		t.Fatal("0 should be below the default minimum")
	}

	id, err = Id(json.Number("0"), IdOpts{SpecialValues: []int{0}})
	if err != nil || id != 0 {
		t.Fatalf("0 should be accepted as a special value, got %d (%v)", id, err)
	}

	id, err = Id(json.Number("-1"), IdOpts{SpecialValues: []int{-1}})
	if err != nil || id != -1 {
		t.Fatalf("-1 should be accepted as a special value, got %d (%v)", id, err)
	}

	if _, err := Id(json.Number("2.5"), IdOpts{}); err == nil {
		t.Fatal("fractional number should be rejected")
	}

	if _, err := Id(nil, IdOpts{}); err == nil {
		t.Fatal("nil should be rejected")
	}

	if _, err := Id(true, IdOpts{}); !errors.Is(err, ErrInvalidDataExport) {
		t.Fatalf("coercion errors must wrap ErrInvalidDataExport, got %v", err)
	}
}

func TestOptionalId(t *testing.T) {
	id, err := OptionalId(nil, IdOpts{})
	if err != nil || id != nil {
		t.Fatalf("nil should pass through, got %v (%v)", id, err)
	}

	id, err = OptionalId(json.Number("3"), IdOpts{})
	if err != nil || id == nil || *id != 3 {
		t.Fatalf("expected 3, got %v (%v)", id, err)
	}
}

func TestUUID(t *testing.T) {
	want := uuid.New()

	got, err := UUID(want.String())
	if err != nil || got != want {
		t.Fatalf("expected %v, got %v (%v)", want, got, err)
	}

	if _, err := UUID("not-a-uuid"); !errors.Is(err, ErrInvalidDataExport) {
		t.Fatalf("expected ErrInvalidDataExport, got %v", err)
	}

	if _, err := UUID(nil); err == nil {
		t.Fatal("nil should be rejected")
	}

	got2, err := OptionalUUID(nil)
	if err != nil || got2 != nil {
		t.Fatalf("nil should pass through, got %v (%v)", got2, err)
	}
}

func TestBool(t *testing.T) {
	if _, err := Bool("true"); err == nil {
		t.Fatal("string should not coerce to bool")
	}

	v, err := BoolDefault(nil, true)
	if err != nil || !v {
		t.Fatalf("expected default true, got %v (%v)", v, err)
	}

	v, err = BoolDefault(false, true)
	if err != nil || v {
		t.Fatalf("expected false, got %v (%v)", v, err)
	}

	p, err := OptionalBool(nil)
	if err != nil || p != nil {
		t.Fatalf("nil should pass through, got %v (%v)", p, err)
	}
}

func TestStr(t *testing.T) {
	s, err := Str("hello")
	if err != nil || s != "hello" {
		t.Fatalf("expected hello, got %q (%v)", s, err)
	}

	if _, err := Str(7); err == nil {
		t.Fatal("int should not coerce to string")
	}

	if _, err := NonEmptyStr(""); err == nil {
		t.Fatal("empty string should be rejected")
	}

	p, err := OptionalStr(nil)
	if err != nil || p != nil {
		t.Fatalf("nil should pass through, got %v (%v)", p, err)
	}
}

func TestDictAndList(t *testing.T) {
	d, err := Dict(map[string]interface{}{"a": 1})
	if err != nil || d["a"] != 1 {
		t.Fatalf("expected dict, got %v (%v)", d, err)
	}

	if _, err := Dict([]interface{}{}); err == nil {
		t.Fatal("list should not coerce to dict")
	}

	l, err := List([]interface{}{"x"})
	if err != nil || len(l) != 1 {
		t.Fatalf("expected list, got %v (%v)", l, err)
	}

	d, err = OptionalDict(nil)
	if err != nil || d != nil {
		t.Fatalf("nil should pass through, got %v (%v)", d, err)
	}
}

func TestTranslation(t *testing.T) {
	tr, err := Translation(map[string]interface{}{"en": "Name", "de": "Name"})
	if err != nil || tr["en"] != "Name" || tr["de"] != "Name" {
		t.Fatalf("expected translation map, got %v (%v)", tr, err)
	}

	tr, err = Translation("Name")
	if err != nil || tr["en"] != "Name" {
		t.Fatalf("plain string should become an 'en' entry, got %v (%v)", tr, err)
	}

	if _, err := Translation(map[string]interface{}{"en": 5}); err == nil {
		t.Fatal("non-string translation value should be rejected")
	}
}

func TestUTCDatetime(t *testing.T) {
	delta := 30 * time.Minute

	now := time.Now().UTC()
	parsed, err := UTCDatetime(now.Format(TimestampFormat), delta)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Sub(now) > time.Second || now.Sub(parsed) > time.Second {
		t.Fatalf("round trip drifted: %v vs %v", parsed, now)
	}

	past := now.Add(-time.Hour)
	if _, err := UTCDatetime(past.Format(TimestampFormat), delta); err != nil {
		t.Fatalf("past timestamps are always valid: %v", err)
	}

	future := now.Add(time.Hour)
	if _, err := UTCDatetime(future.Format(TimestampFormat), delta); !errors.Is(err, ErrInvalidDataExport) {
		t.Fatalf("timestamp beyond the valid delta should be rejected, got %v", err)
	}

	nearFuture := now.Add(time.Minute)
	if _, err := UTCDatetime(nearFuture.Format(TimestampFormat), delta); err != nil {
		t.Fatalf("timestamp within the valid delta should be accepted: %v", err)
	}

	if _, err := UTCDatetime("yesterday", delta); err == nil {
		t.Fatal("unparseable timestamp should be rejected")
	}

	p, err := OptionalUTCDatetime(nil, delta)
	if err != nil || p != nil {
		t.Fatalf("nil should pass through, got %v (%v)", p, err)
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("bad value %d", 7)
	if !errors.Is(err, ErrInvalidDataExport) {
		t.Fatal("Invalid must wrap ErrInvalidDataExport")
	}
	if !strings.Contains(err.Error(), "bad value 7") {
		t.Fatalf("unexpected message: %v", err)
	}
}
