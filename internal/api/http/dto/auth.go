package dto

type PairRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type PairResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}
