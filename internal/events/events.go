package events

import (
	"context"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// Subject prefix shared by every event.
const Prefix = "eligibility"

// Owner kinds as they appear in event subjects.
const (
	KindAppConfig         = "appconfig"
	KindSubpopulation     = "subpopulation"
	KindNotificationTopic = "notificationtopic"
	KindSchedulePlan      = "scheduleplan"
)

// Owner lifecycle actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted" // logical delete
	ActionPurged  = "purged"  // permanent delete
)

// Criteria topics
const (
	TopicCriteriaSaved  = Prefix + ".criteria.saved"
	TopicCriteriaPurged = Prefix + ".criteria.purged"
	TopicCriteria       = Prefix + ".criteria.>"
)

// All matches every event subject.
const All = Prefix + ".>"

// OwnerTopic returns the subject for an owner lifecycle event, e.g.
// "eligibility.appconfig.created".
func OwnerTopic(kind, action string) string {
	return Prefix + "." + kind + "." + action
}

// Event types

// OwnerChanged is published on every owner lifecycle topic.
type OwnerChanged struct {
	Kind    string `json:"kind"`
	Action  string `json:"action"`
	AppID   string `json:"app_id"`
	GUID    string `json:"guid"`
	Version int64  `json:"version,omitempty"`
}

type CriteriaSaved struct {
	Key      string          `json:"key"`
	Criteria *model.Criteria `json:"criteria"`
}

type CriteriaPurged struct {
	Key string `json:"key"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw payloads published on a subject. Subjects may use
// NATS wildcards such as All or TopicCriteria.
type Subscriber interface {
	// Subscribe returns a channel of payloads and a cancel function that
	// unsubscribes and closes the channel.
	Subscribe(subject string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher drops every event. It stands in when no NATS URL is set.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }

var (
	_ Publisher  = (*NoopPublisher)(nil)
	_ Publisher  = (*NATSPublisher)(nil)
	_ Subscriber = (*NATSSubscriber)(nil)
)
