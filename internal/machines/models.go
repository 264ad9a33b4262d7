package machines

import (
	"cmp"
	"slices"
	"time"
)

// Record is the current state of one machine. There is exactly one Record per
// MachineID; every accepted heartbeat replaces ClientID, RunningPrograms and
// LastSeen as a unit.
type Record struct {
	MachineID       string    `json:"machine_id"`
	ClientID        string    `json:"client_id"`
	RunningPrograms []string  `json:"running_programs"`
	LastSeen        time.Time `json:"last_seen"`
}

func (r Record) clone() Record {
	r.RunningPrograms = cloneStrings(r.RunningPrograms)
	return r
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

func sortByMachineID(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		return cmp.Compare(a.MachineID, b.MachineID)
	})
}
