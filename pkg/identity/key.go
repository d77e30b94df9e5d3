package identity

import "strings"

// Key identifies one resolved student within a single run.
// It is either "ID:<code>" or "NAME:<space-normalized lowercase name>".
type Key string

const (
	idPrefix   = "ID:"
	namePrefix = "NAME:"
)

// IDKey returns the key for a student ID.
func IDKey(id string) Key {
	return Key(idPrefix + id)
}

// NameKey returns the key for a name without an ID.
func NameKey(name string) Key {
	return Key(namePrefix + NormalizeSpaces(name))
}

// IsID reports whether the key is ID based.
func (k Key) IsID() bool {
	return strings.HasPrefix(string(k), idPrefix)
}

// IsName reports whether the key is name based.
func (k Key) IsName() bool {
	return strings.HasPrefix(string(k), namePrefix)
}

// ID returns the student ID of an ID-based key, or "".
func (k Key) ID() string {
	if !k.IsID() {
		return ""
	}
	return strings.TrimPrefix(string(k), idPrefix)
}

func (k Key) String() string {
	return string(k)
}
