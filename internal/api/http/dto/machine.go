package dto

type MachineRow struct {
	ClientID        string `json:"client_id"`
	MachineID       string `json:"machine_id"`
	LastSeen        string `json:"last_seen"`
	Status          string `json:"status"`
	RunningPrograms string `json:"running_programs"`
}
