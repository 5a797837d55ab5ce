// Package artifact serializes compiled member sets as a canonical CBOR
// document. The content hash covers the payload only, so two builds of the
// same unit hash identically even though each gets a fresh ID.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/memberkit/decl"
	"github.com/chazu/memberkit/driver"
	"github.com/chazu/memberkit/synth"
)

// Version is the artifact format version.
const Version = 1

var ErrHashMismatch = errors.New("artifact: content hash mismatch")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Artifact is the serialized form of a compilation result.
type Artifact struct {
	Version int      `cbor:"1,keyasint"`
	ID      string   `cbor:"2,keyasint"`
	Hash    [32]byte `cbor:"3,keyasint"`
	Payload Payload  `cbor:"4,keyasint"`
}

// Payload is the hashed part of an artifact.
type Payload struct {
	Classes    []Class     `cbor:"1,keyasint"`
	Extensions []Extension `cbor:"2,keyasint,omitempty"`
}

// Class records one synthesized class.
type Class struct {
	Name        string     `cbor:"1,keyasint"`
	Kind        string     `cbor:"2,keyasint"`
	Enclosing   string     `cbor:"3,keyasint,omitempty"`
	Supertypes  []string   `cbor:"4,keyasint,omitempty"`
	Slots       int        `cbor:"5,keyasint"`
	Properties  []Property `cbor:"6,keyasint,omitempty"`
	Constructor []Param    `cbor:"7,keyasint,omitempty"`
	Methods     []string   `cbor:"8,keyasint,omitempty"`
	Companion   []string   `cbor:"9,keyasint,omitempty"`
}

// Property records a synthesized property and its interop names.
type Property struct {
	Name         string `cbor:"1,keyasint"`
	Type         string `cbor:"2,keyasint"`
	Mutable      bool   `cbor:"3,keyasint"`
	Computed     bool   `cbor:"4,keyasint"`
	Private      bool   `cbor:"5,keyasint"`
	Promoted     bool   `cbor:"6,keyasint"`
	Slot         int    `cbor:"7,keyasint"`
	CustomGetter bool   `cbor:"8,keyasint"`
	CustomSetter bool   `cbor:"9,keyasint"`
	Getter       string `cbor:"10,keyasint"`
	Setter       string `cbor:"11,keyasint,omitempty"`
}

// Param records a constructor parameter.
type Param struct {
	Name      string `cbor:"1,keyasint"`
	Type      string `cbor:"2,keyasint"`
	Optional  bool   `cbor:"3,keyasint"`
	Promotion string `cbor:"4,keyasint"`
}

// Extension records a registered extension.
type Extension struct {
	Receiver  string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	Kind      string `cbor:"3,keyasint"`
	Signature string `cbor:"4,keyasint"`
	Result    string `cbor:"5,keyasint,omitempty"`
}

// Build converts a compilation result into an artifact with a fresh ID.
func Build(res *driver.Result) (*Artifact, error) {
	p := Payload{}
	for _, c := range res.Classes {
		p.Classes = append(p.Classes, classRecord(c))
	}
	for _, ext := range res.Extensions.All() {
		p.Extensions = append(p.Extensions, Extension{
			Receiver:  ext.Receiver.String(),
			Name:      ext.Name,
			Kind:      ext.Kind.String(),
			Signature: ext.Signature(),
			Result:    ext.Result.String(),
		})
	}

	h, err := p.Hash()
	if err != nil {
		return nil, err
	}
	return &Artifact{Version: Version, ID: uuid.NewString(), Hash: h, Payload: p}, nil
}

func classRecord(c *driver.Class) Class {
	ms := c.Members
	rec := Class{
		Name:       ms.Class(),
		Kind:       ms.Kind().String(),
		Enclosing:  ms.Enclosing(),
		Supertypes: ms.Supertypes(),
		Slots:      ms.NumSlots(),
	}
	names := make(map[string]int, len(c.Names))
	for i, n := range c.Names {
		names[n.Property] = i
	}
	for _, p := range ms.Properties() {
		pr := Property{
			Name:         p.Name,
			Type:         p.Type.String(),
			Mutable:      p.Mutable(),
			Computed:     !p.HasBackingField(),
			Private:      p.Visibility == decl.Private,
			Promoted:     p.Origin == synth.Promoted,
			Slot:         p.Slot,
			CustomGetter: !p.Getter.IsDefault(),
			CustomSetter: p.Setter != nil && !p.Setter.IsDefault(),
		}
		if i, ok := names[p.Name]; ok {
			pr.Getter = c.Names[i].Names.Getter
			pr.Setter = c.Names[i].Names.Setter
		}
		rec.Properties = append(rec.Properties, pr)
	}
	for _, p := range ms.Constructor().Params {
		rec.Constructor = append(rec.Constructor, Param{
			Name:      p.Name,
			Type:      p.Type.String(),
			Optional:  p.Optional(),
			Promotion: p.Promotion.String(),
		})
	}
	for _, m := range ms.Methods() {
		rec.Methods = append(rec.Methods, m.Name)
	}
	for _, m := range ms.Companion() {
		rec.Companion = append(rec.Companion, m.Name)
	}
	return rec
}

// Hash returns the SHA-256 of the canonical encoding of p.
func (p Payload) Hash() ([32]byte, error) {
	data, err := encMode.Marshal(p)
	if err != nil {
		return [32]byte{}, fmt.Errorf("artifact: marshal payload: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Encode serializes the artifact.
func Encode(a *Artifact) ([]byte, error) {
	return encMode.Marshal(a)
}

// Decode deserializes an artifact and verifies its content hash.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal: %w", err)
	}
	if a.Version != Version {
		return nil, fmt.Errorf("artifact: unsupported version %d", a.Version)
	}
	h, err := a.Payload.Hash()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(h[:], a.Hash[:]) {
		return nil, ErrHashMismatch
	}
	return &a, nil
}

// WriteFile encodes a and writes it to path.
func WriteFile(path string, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes the artifact at path.
func ReadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return Decode(data)
}

// Class looks up a class record by name.
func (a *Artifact) Class(name string) (Class, bool) {
	for _, c := range a.Payload.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return Class{}, false
}
