package entity

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}
