package memory

import (
	"fmt"
	"strconv"
)

// Role classifies what a memory item is. The set is closed: anything outside
// it is rejected at construction time.
type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleFact        Role = "fact"
	RoleSummary     Role = "summary"
	RoleUserProfile Role = "user_profile"
)

// PersistentRoles are never removed by the time-based retention sweep.
var PersistentRoles = []Role{RoleFact, RoleUserProfile}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAssistant, RoleFact, RoleSummary, RoleUserProfile:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether the role is one of the known members.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Metadata keys used for memory items in the vector store.
const (
	metaRole       = "role"
	metaHistoryUID = "history_uid"
	metaConfUID    = "conf_uid"
	metaTimestamp  = "timestamp"
)

// Item is a single stored unit of dialogue-derived knowledge. Items are
// append-only: created once, never mutated, destroyed only by explicit
// deletion or the retention sweep.
type Item struct {
	ID         string
	Content    string
	Role       Role
	HistoryUID string
	ConfUID    string

	// Timestamp is the creation time in seconds since epoch, assigned at
	// write time.
	Timestamp int64
}

// metadata encodes the item fields for vector-store filtering.
func (it Item) metadata() map[string]string {
	return map[string]string{
		metaRole:       string(it.Role),
		metaHistoryUID: it.HistoryUID,
		metaConfUID:    it.ConfUID,
		metaTimestamp:  strconv.FormatInt(it.Timestamp, 10),
	}
}

// itemFromDocument decodes a stored document back into an Item. Unknown or
// missing fields are left zero rather than rejected: data already in the
// store is served as-is.
func itemFromDocument(doc Document) Item {
	ts, _ := strconv.ParseInt(doc.Metadata[metaTimestamp], 10, 64)
	return Item{
		ID:         doc.ID,
		Content:    doc.Content,
		Role:       Role(doc.Metadata[metaRole]),
		HistoryUID: doc.Metadata[metaHistoryUID],
		ConfUID:    doc.Metadata[metaConfUID],
		Timestamp:  ts,
	}
}
