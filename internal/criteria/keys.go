package criteria

import (
	"fmt"
	"strconv"
	"strings"
)

// OwnerKind names the kind of record a Criteria belongs to. It is the first
// segment of every derived key.
type OwnerKind string

const (
	KindAppConfig         OwnerKind = "appconfig"
	KindSubpopulation     OwnerKind = "subpopulation"
	KindNotificationTopic OwnerKind = "notificationtopic"
	KindScheduleCriteria  OwnerKind = "scheduleCriteria"
)

// IsValid reports whether the kind is one of the known owner kinds.
func (k OwnerKind) IsValid() bool {
	switch k {
	case KindAppConfig, KindSubpopulation, KindNotificationTopic, KindScheduleCriteria:
		return true
	}
	return false
}

// Key returns the storage key for a single-Criteria owner: "<kind>:<id>".
func Key(kind OwnerKind, id string) string {
	return string(kind) + ":" + id
}

// IndexedKey returns the storage key for the i-th Criteria of an owner that
// holds an ordered list: "<kind>:<id>:<i>".
func IndexedKey(kind OwnerKind, id string, i int) string {
	return Key(kind, id) + ":" + strconv.Itoa(i)
}

// Prefix returns the key prefix shared by every Criteria of an owner,
// indexed or not.
func Prefix(kind OwnerKind, id string) string {
	return Key(kind, id) + ":"
}

// AppConfigKey returns the Criteria key of an app config.
func AppConfigKey(guid string) string { return Key(KindAppConfig, guid) }

// SubpopulationKey returns the Criteria key of a subpopulation.
func SubpopulationKey(guid string) string { return Key(KindSubpopulation, guid) }

// TopicKey returns the Criteria key of a notification topic.
func TopicKey(guid string) string { return Key(KindNotificationTopic, guid) }

// ScheduleCriteriaKey returns the Criteria key of the i-th entry of a
// schedule plan's strategy.
func ScheduleCriteriaKey(planGUID string, i int) string {
	return IndexedKey(KindScheduleCriteria, planGUID, i)
}

// ParsedKey is the decomposition of a derived key. Index is -1 for
// single-Criteria owners.
type ParsedKey struct {
	Kind  OwnerKind
	ID    string
	Index int
}

// ParseKey splits a key produced by Key or IndexedKey.
func ParseKey(key string) (ParsedKey, error) {
	kind, rest, ok := strings.Cut(key, ":")
	if !ok || kind == "" || rest == "" {
		return ParsedKey{}, fmt.Errorf("malformed criteria key %q", key)
	}
	pk := ParsedKey{Kind: OwnerKind(kind), ID: rest, Index: -1}
	if !pk.Kind.IsValid() {
		return ParsedKey{}, fmt.Errorf("unknown owner kind %q in key %q", kind, key)
	}
	if id, idx, ok := strings.Cut(rest, ":"); ok {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || id == "" {
			return ParsedKey{}, fmt.Errorf("malformed index in criteria key %q", key)
		}
		pk.ID = id
		pk.Index = i
	}
	return pk, nil
}

// String rebuilds the key.
func (pk ParsedKey) String() string {
	if pk.Index < 0 {
		return Key(pk.Kind, pk.ID)
	}
	return IndexedKey(pk.Kind, pk.ID, pk.Index)
}
