package domain

import "fmt"

// Kind selects the custody primitive used to hold the asset.
type Kind uint8

const (
	KindUnmanaged Kind = iota + 1
	KindManaged
	KindPermissioned
	KindEdition
	KindProgrammable
)

var kindNames = map[Kind]string{
	KindUnmanaged:    "unmanaged",
	KindManaged:      "managed",
	KindPermissioned: "permissioned",
	KindEdition:      "edition",
	KindProgrammable: "programmable",
}

func (k Kind) String() string { return enumString(kindNames, k) }

// Freezes reports whether the claimed asset is frozen in the holder's account.
func (k Kind) Freezes() bool { return k != KindUnmanaged }

// Delegates reports whether the claimed account is delegated back to the manager.
func (k Kind) Delegates() bool { return k == KindEdition }

// RequiresMintAuthority reports whether issuing needs a delegated mint authority.
func (k Kind) RequiresMintAuthority() bool {
	return k == KindManaged || k == KindPermissioned
}

func (k Kind) MarshalText() ([]byte, error) { return enumMarshal(kindNames, k) }

func (k *Kind) UnmarshalText(b []byte) error { return enumUnmarshal(kindNames, k, b, "kind") }

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	var k Kind
	err := k.UnmarshalText([]byte(s))
	return k, err
}

// State is the token manager lifecycle state.
type State uint8

const (
	StateUninitialized State = iota
	StateIssued
	StateClaimed
	StateInvalidated
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateIssued:        "issued",
	StateClaimed:       "claimed",
	StateInvalidated:   "invalidated",
}

func (s State) String() string { return enumString(stateNames, s) }

func (s State) MarshalText() ([]byte, error) { return enumMarshal(stateNames, s) }

func (s *State) UnmarshalText(b []byte) error { return enumUnmarshal(stateNames, s, b, "state") }

// ParseState parses a state name.
func ParseState(s string) (State, error) {
	var st State
	err := st.UnmarshalText([]byte(s))
	return st, err
}

// InvalidationType governs what happens to the asset when custody ends.
type InvalidationType uint8

const (
	InvalidationReturn InvalidationType = iota + 1
	InvalidationInvalidate
	InvalidationRelease
	InvalidationReissue
)

var invalidationNames = map[InvalidationType]string{
	InvalidationReturn:     "return",
	InvalidationInvalidate: "invalidate",
	InvalidationRelease:    "release",
	InvalidationReissue:    "reissue",
}

func (t InvalidationType) String() string { return enumString(invalidationNames, t) }

func (t InvalidationType) MarshalText() ([]byte, error) { return enumMarshal(invalidationNames, t) }

func (t *InvalidationType) UnmarshalText(b []byte) error {
	return enumUnmarshal(invalidationNames, t, b, "invalidation type")
}

// ParseInvalidationType parses an invalidation type name.
func ParseInvalidationType(s string) (InvalidationType, error) {
	var t InvalidationType
	err := t.UnmarshalText([]byte(s))
	return t, err
}

func enumString[E ~uint8](names map[E]string, v E) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", v)
}

func enumMarshal[E ~uint8](names map[E]string, v E) ([]byte, error) {
	s, ok := names[v]
	if !ok {
		return nil, ErrInvalidArgument.WithDetailsf("unknown value %d", v)
	}
	return []byte(s), nil
}

func enumUnmarshal[E ~uint8](names map[E]string, dst *E, b []byte, field string) error {
	for v, s := range names {
		if s == string(b) {
			*dst = v
			return nil
		}
	}
	return ErrInvalidArgument.WithDetailsf("unknown %s %q", field, string(b))
}
