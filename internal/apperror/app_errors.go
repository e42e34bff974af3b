package apperror

import "errors"

var (
	ErrNotConnected     = errors.New("not connected to game server")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNoActiveRound    = errors.New("no active round")
	ErrVotingNotStarted = errors.New("voting has not started")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotEnoughPlayers = errors.New("not enough players to start a round")
	ErrReconnectFailed  = errors.New("reconnect attempts exhausted")
)

// RemoteError - an operation the game server rejected; the message is passed through verbatim.
type RemoteError struct {
	Message string
}

func (that *RemoteError) Error() string {
	return "server rejected operation: " + that.Message
}

func NewRemoteError(message string) *RemoteError {
	return &RemoteError{Message: message}
}
