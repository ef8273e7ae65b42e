package object

import "fmt"

// Kind is the small integer tag persisted in tree_entries.kind.
type Kind uint8

const (
	KindUnknown Kind = 0
	KindAny     Kind = 1
	KindCommit  Kind = 2 // submodule link
	KindTree    Kind = 3
	KindBlob    Kind = 4
	KindTag     Kind = 5
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindAny:     "any",
	KindCommit:  "commit",
	KindTree:    "tree",
	KindBlob:    "blob",
	KindTag:     "tag",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// UnknownKindError is returned when a persisted kind tag is outside 0..5.
type UnknownKindError struct {
	Tag int64
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown object kind tag %d", e.Tag)
}

// ParseKind decodes a persisted kind tag.
func ParseKind(tag int64) (Kind, error) {
	if tag < 0 || tag >= int64(len(kindNames)) {
		return KindUnknown, &UnknownKindError{Tag: tag}
	}
	return Kind(tag), nil
}

// Scan decodes a kind tag column, rejecting unknown values.
func (k *Kind) Scan(src any) error {
	v, ok := src.(int64)
	if !ok {
		return fmt.Errorf("scan kind: unsupported source type %T", src)
	}
	parsed, err := ParseKind(v)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
