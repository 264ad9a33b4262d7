package dto

type HeartbeatRequest struct {
	ClientID        string   `json:"client_id" binding:"required"`
	MachineID       string   `json:"machine_id" binding:"required"`
	RunningPrograms []string `json:"running_programs" binding:"required"`
}

type AckResponse struct {
	Msg string `json:"msg"`
}
