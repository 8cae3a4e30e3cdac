package models

import (
	"encoding/json"
	"fmt"
)

// User is a reference to a directory user or group. List payloads carry bare
// id strings while detail payloads carry objects; UnmarshalJSON accepts both.
type User struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	GroupDisplayName string `json:"groupDisplayName,omitempty"`

	selected bool
}

// UnmarshalJSON decodes either a bare id string or a user object
func (u *User) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*u = User{ID: id}
		return nil
	}

	type alias User
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*u = User(decoded)
	return nil
}

// MarshalJSON emits the object form
func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(alias(u))
}

// IsGroup reports whether the reference points at a group rather than a user
func (u *User) IsGroup() bool {
	return u.GroupDisplayName != ""
}

// IsSelected implements models.Selectable
func (u *User) IsSelected() bool {
	return u.selected
}

// SetSelected implements models.Selectable
func (u *User) SetSelected(selected bool) {
	u.selected = selected
}

// NamePair is one entry of a message's displayNames list: a two-element
// [id, displayName] array on the wire.
type NamePair struct {
	ID   string
	Name string
}

// UnmarshalJSON decodes the two-element array form
func (p *NamePair) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("displayNames entry has %d elements, want 2", len(pair))
	}
	p.ID = pair[0]
	p.Name = pair[1]
	return nil
}

// MarshalJSON emits the two-element array form
func (p NamePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{p.ID, p.Name})
}

// MapUser resolves an id into a display object using a message's parallel
// displayNames list. Unknown ids keep an empty display name.
func MapUser(displayNames []NamePair, id string) User {
	for _, pair := range displayNames {
		if pair.ID == id {
			return User{ID: id, DisplayName: pair.Name}
		}
	}
	return User{ID: id}
}
