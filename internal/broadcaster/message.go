package broadcaster

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Message is the envelope for every server-pushed event. The payload is
// opaque to this package; domain events forwarded from the CRUD services are
// never interpreted here.
type Message struct {
	Id         string    `json:"id"`
	CreateTime time.Time `json:"createTime"`
	Event      string    `json:"event"`
	Payload    any       `json:"payload"`
}

func NewMessage(event string, payload any) Message {
	return Message{
		Id:         gonanoid.Must(),
		CreateTime: time.Now(),
		Event:      event,
		Payload:    payload,
	}
}
