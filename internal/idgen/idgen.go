// Package idgen generates owner GUIDs backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// GUID prefixes by owner kind. They keep derived criteria keys readable
// ("appconfig:cfg-...") without affecting matching.
const (
	PrefixAppConfig         = "cfg-"
	PrefixSubpopulation     = "sub-"
	PrefixNotificationTopic = "top-"
	PrefixSchedulePlan      = "plan-"
)

// Alphabet excludes ':' so a GUID can never be mistaken for a key separator.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters after the prefix.
const Length = 16

// New returns a fresh GUID with the given prefix.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
