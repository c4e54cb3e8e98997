package dto

type HealthResponse struct {
	Status           string `json:"status"`
	Paired           bool   `json:"paired"`
	Sessions         int    `json:"sessions"`
	PendingApprovals int    `json:"pendingApprovals"`
}
