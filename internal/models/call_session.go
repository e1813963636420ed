package models

// StartSessionRequest is the body of POST /api/session/start.
// MobileNumber is accepted for older browser clients.
type StartSessionRequest struct {
	CallerID     string `json:"callerId"`
	MobileNumber string `json:"mobileNumber,omitempty"`
}

// StartSessionResponse hands the caller everything needed to join its room.
type StartSessionResponse struct {
	RoomID   string `json:"roomId"`
	Token    string `json:"token"`
	CallerID string `json:"callerId"`
	WSURL    string `json:"wsUrl"`
}
