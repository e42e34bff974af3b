package gateway

// Defaults applied to CreateRoom when the caller leaves an option zero,
// matching what the server would otherwise reject.
const (
	defaultMaxPlayers            = 8
	defaultRoundDurationSeconds  = 60
	defaultVotingDurationSeconds = 30
	defaultMaxRounds             = 5
)

type CreateRoomOptions struct {
	CustomTopics          []string
	UseDefaultTopics      *bool
	MaxPlayers            int
	RoundDurationSeconds  int
	VotingDurationSeconds int
	MaxRounds             int
}

type CreateRoomRequest struct {
	HostName              string   `json:"hostName"`
	CustomTopics          []string `json:"customTopics"`
	UseDefaultTopics      bool     `json:"useDefaultTopics"`
	MaxPlayers            int      `json:"maxPlayers"`
	RoundDurationSeconds  int      `json:"roundDurationSeconds"`
	VotingDurationSeconds int      `json:"votingDurationSeconds"`
	MaxRounds             int      `json:"maxRounds"`
}

func newCreateRoomRequest(hostName string, opts CreateRoomOptions) CreateRoomRequest {
	request := CreateRoomRequest{
		HostName:              hostName,
		CustomTopics:          opts.CustomTopics,
		UseDefaultTopics:      true,
		MaxPlayers:            opts.MaxPlayers,
		RoundDurationSeconds:  opts.RoundDurationSeconds,
		VotingDurationSeconds: opts.VotingDurationSeconds,
		MaxRounds:             opts.MaxRounds,
	}

	if request.CustomTopics == nil {
		request.CustomTopics = []string{}
	}

	if opts.UseDefaultTopics != nil {
		request.UseDefaultTopics = *opts.UseDefaultTopics
	}

	if request.MaxPlayers == 0 {
		request.MaxPlayers = defaultMaxPlayers
	}

	if request.RoundDurationSeconds == 0 {
		request.RoundDurationSeconds = defaultRoundDurationSeconds
	}

	if request.VotingDurationSeconds == 0 {
		request.VotingDurationSeconds = defaultVotingDurationSeconds
	}

	if request.MaxRounds == 0 {
		request.MaxRounds = defaultMaxRounds
	}

	return request
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type SubmitAnswersRequest struct {
	Answers map[string]string `json:"answers"`
}

type SubmitVotesRequest struct {
	Votes map[string]string `json:"votes"`
}

type VoteRequest struct {
	AnswerID string `json:"answerId"`
	IsValid  bool   `json:"isValid"`
}

type RoomSettings struct {
	Topics                []string `json:"topics"`
	MaxPlayers            int      `json:"maxPlayers"`
	RoundDurationSeconds  int      `json:"roundDurationSeconds"`
	VotingDurationSeconds int      `json:"votingDurationSeconds"`
	MaxRounds             int      `json:"maxRounds"`
}

type UpdateRoomSettingsRequest struct {
	RoomCode string `json:"roomCode"`
	RoomSettings
}
