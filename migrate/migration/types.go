package migration

import "time"

type Direction rune

const (
	Down Direction = 'd'
	Up   Direction = 'u'
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// ---

const VersionBits = 64

type Version uint64

type Migration struct {
	Version Version
	Name    string
}

// ---

type Status uint

const (
	Pending Status = iota
	Applied
	Missing
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Missing:
		return "missing"
	default:
		return "pending"
	}
}

// ---

// Record is one row of the schema_migrations ledger.
type Record struct {
	Migration
	AppliedAt time.Time
}

// ---

type Description struct {
	Migration
	CanUndo bool
}

type State struct {
	Description
	Status    Status
	AppliedAt time.Time
}
