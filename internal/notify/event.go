// Package notify carries registry notifications to external sinks.
//
// Notifications are fire-and-forget: the registry never consumes an
// acknowledgment, and a failed delivery never rolls back an operation.
package notify

import (
	"time"

	"github.com/google/uuid"

	"profilereg/internal/profile/models"
	"profilereg/internal/profile/username"
	id "profilereg/pkg/domain"
)

// Topic names a notification kind.
type Topic string

const (
	TopicProfileRegistered   Topic = "profile_registered"
	TopicProfileUpdated      Topic = "profile_updated"
	TopicDisplayNameChanged  Topic = "display_name_changed"
	TopicProfileDeleted      Topic = "profile_deleted"
	TopicProfileBanned       Topic = "profile_banned"
	TopicUsernameTransferred Topic = "username_transferred"
	TopicUsernameReserved    Topic = "username_reserved"
	TopicUsernameUnreserved  Topic = "username_unreserved"
)

// Topics lists every topic the registry emits.
var Topics = []Topic{
	TopicProfileRegistered, TopicProfileUpdated, TopicDisplayNameChanged, TopicProfileDeleted,
	TopicProfileBanned, TopicUsernameTransferred, TopicUsernameReserved, TopicUsernameUnreserved,
}

func (t Topic) String() string { return string(t) }

// Event is one notification record. Only the fields relevant to the topic
// are set.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Topic      Topic             `json:"topic"`
	Principal  id.Principal      `json:"principal,omitempty"`
	Username   username.Username `json:"username,omitempty"`
	Field      models.FieldName  `json:"field,omitempty"`
	From       id.Principal      `json:"from,omitempty"`
	To         id.Principal      `json:"to,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Key is the partitioning key used by ordered sinks.
func (e Event) Key() string {
	if e.Username != "" {
		return e.Username.String()
	}
	return e.Principal.String()
}

func newEvent(topic Topic, at time.Time) Event {
	return Event{ID: uuid.New(), Topic: topic, OccurredAt: at.UTC()}
}

func ProfileRegistered(p id.Principal, u username.Username, at time.Time) Event {
	e := newEvent(TopicProfileRegistered, at)
	e.Principal, e.Username = p, u
	return e
}

func ProfileUpdated(p id.Principal, field models.FieldName, at time.Time) Event {
	e := newEvent(TopicProfileUpdated, at)
	e.Principal, e.Field = p, field
	return e
}

func DisplayNameChanged(p id.Principal, at time.Time) Event {
	e := newEvent(TopicDisplayNameChanged, at)
	e.Principal = p
	return e
}

func ProfileDeleted(p id.Principal, at time.Time) Event {
	e := newEvent(TopicProfileDeleted, at)
	e.Principal = p
	return e
}

func ProfileBanned(p id.Principal, at time.Time) Event {
	e := newEvent(TopicProfileBanned, at)
	e.Principal = p
	return e
}

func UsernameTransferred(u username.Username, from, to id.Principal, at time.Time) Event {
	e := newEvent(TopicUsernameTransferred, at)
	e.Username, e.From, e.To = u, from, to
	return e
}

func UsernameReserved(u username.Username, at time.Time) Event {
	e := newEvent(TopicUsernameReserved, at)
	e.Username = u
	return e
}

func UsernameUnreserved(u username.Username, at time.Time) Event {
	e := newEvent(TopicUsernameUnreserved, at)
	e.Username = u
	return e
}
