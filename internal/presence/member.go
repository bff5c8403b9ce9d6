package presence

// Member is the user metadata carried by one live connection in a room.
// DisplayName and AvatarUrl are client-supplied presentation data, not
// validated against the stored profile.
type Member struct {
	ConnectionId string `json:"connectionId"`
	UserId       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	AvatarUrl    string `json:"avatarUrl"`
}

const (
	EventSnapshot = "presence.snapshot"
	EventJoined   = "presence.joined"
	EventLeft     = "presence.left"
)

type LeftEvent struct {
	UserId string `json:"userId"`
}
