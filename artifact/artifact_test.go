package artifact

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/memberkit/driver"
	"github.com/chazu/memberkit/unit"
)

const src = `classes:
  - name: Square
    params:
      - {name: side, type: Int, promote: var}
    properties:
      - name: area
        type: Int
        storage: computed
        get: {body: {binary: "*", left: {get: side}, right: {get: side}}}
      - name: isEmpty
        type: Boolean
        storage: computed
        get: {body: {binary: "==", left: {get: side}, right: 0}}
    companion:
      - {name: UNIT, value: 1}
extensions:
  - receiver: Square
    name: perimeter
    kind: property
    result: Int
    body: {binary: "*", left: {get: side}, right: 4}
`

func build(t *testing.T) *Artifact {
	t.Helper()
	u, err := unit.Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	res, err := driver.Compile(u, driver.Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	a, err := Build(res)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return a
}

func TestBuildRecordsMembers(t *testing.T) {
	a := build(t)
	sq, ok := a.Class("Square")
	if !ok {
		t.Fatal("Square missing from artifact")
	}
	if sq.Slots != 1 || len(sq.Properties) != 3 {
		t.Fatalf("Square = %+v", sq)
	}

	side := sq.Properties[0]
	if !side.Promoted || !side.Mutable || side.Slot != 0 || side.Getter != "getSide" || side.Setter != "setSide" {
		t.Errorf("side = %+v", side)
	}
	area := sq.Properties[1]
	if !area.Computed || area.Slot != -1 || !area.CustomGetter || area.Setter != "" {
		t.Errorf("area = %+v", area)
	}
	if isEmpty := sq.Properties[2]; isEmpty.Getter != "isEmpty" {
		t.Errorf("isEmpty getter = %q", isEmpty.Getter)
	}
	if len(sq.Constructor) != 1 || sq.Constructor[0].Promotion != "var" {
		t.Errorf("constructor = %+v", sq.Constructor)
	}
	if len(sq.Companion) != 1 || sq.Companion[0] != "UNIT" {
		t.Errorf("companion = %v", sq.Companion)
	}
	if len(a.Payload.Extensions) != 1 || a.Payload.Extensions[0].Kind != "property" {
		t.Errorf("extensions = %+v", a.Payload.Extensions)
	}
}

func TestHashIgnoresID(t *testing.T) {
	a, b := build(t), build(t)
	if a.ID == b.ID {
		t.Error("each build should get a fresh ID")
	}
	if a.Hash != b.Hash {
		t.Error("identical payloads must hash identically")
	}

	ea, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	ea2, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(ea) != string(ea2) {
		t.Error("encoding must be deterministic")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	a := build(t)
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.ID != a.ID || got.Hash != a.Hash {
		t.Errorf("decoded header = %s %x", got.ID, got.Hash)
	}
	if sq, ok := got.Class("Square"); !ok || len(sq.Properties) != 3 {
		t.Errorf("decoded Square = %+v", sq)
	}
}

func TestDecodeDetectsTampering(t *testing.T) {
	a := build(t)
	a.Payload.Classes[0].Slots = 7
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("Decode = %v, want ErrHashMismatch", err)
	}

	if _, err := Decode([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage should not decode")
	}
}

func TestWriteReadFile(t *testing.T) {
	a := build(t)
	path := filepath.Join(t.TempDir(), "out.mkart")
	if err := WriteFile(path, a); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got.Hash != a.Hash {
		t.Error("hash changed across a file round trip")
	}
}
