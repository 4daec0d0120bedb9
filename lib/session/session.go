// Package session defines the per-session parameters that the pool
// re-applies to every resource it hands out.
package session

import (
	"fmt"
	"strings"
)

// IsolationLevel is a transaction isolation level.
type IsolationLevel int

const (
	// IsolationUnset means "use whatever the first opened resource reports".
	IsolationUnset IsolationLevel = iota - 1
	// IsolationReadUncommitted allows dirty reads.
	IsolationReadUncommitted
	// IsolationReadCommitted is the usual server default.
	IsolationReadCommitted
	// IsolationRepeatableRead prevents non-repeatable reads.
	IsolationRepeatableRead
	// IsolationSerializable is the strictest level.
	IsolationSerializable
)

var isolationNames = map[IsolationLevel]string{
	IsolationUnset:           "",
	IsolationReadUncommitted: "read uncommitted",
	IsolationReadCommitted:   "read committed",
	IsolationRepeatableRead:  "repeatable read",
	IsolationSerializable:    "serializable",
}

func (l IsolationLevel) String() string {
	if name, ok := isolationNames[l]; ok {
		if name == "" {
			return "unset"
		}
		return name
	}
	return fmt.Sprintf("isolation(%d)", int(l))
}

// Valid reports whether l is one of the known levels, including IsolationUnset.
func (l IsolationLevel) Valid() bool {
	_, ok := isolationNames[l]
	return ok
}

// ParseIsolationLevel accepts the SQL spelling ("read committed"), with
// underscores or dashes in place of spaces and in any case. An empty
// string or "unset" yields IsolationUnset.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	if norm == "" || norm == "unset" {
		return IsolationUnset, nil
	}
	for level, name := range isolationNames {
		if name != "" && name == norm {
			return level, nil
		}
	}
	return IsolationUnset, fmt.Errorf("session: unknown isolation level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l IsolationLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("session: invalid isolation level %d", int(l))
	}
	return []byte(isolationNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *IsolationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseIsolationLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Defaults are the session parameters restored on a resource each time it
// is checked out.
type Defaults struct {
	AutoCommit bool
	Isolation  IsolationLevel
}

func (d Defaults) String() string {
	return fmt.Sprintf("autocommit=%t isolation=%s", d.AutoCommit, d.Isolation)
}
