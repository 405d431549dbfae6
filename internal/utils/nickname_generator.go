package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var adjectives = []string{
	"Lucky", "Sharp", "Curious", "Calm", "Sunny",
	"Quick", "Witty", "Keen", "Steady", "Cosmic",
	"Daring", "Gentle", "Jolly", "Noble", "Rapid",
	"Sly", "Vivid", "Zesty", "Humble", "Savvy",
}

var nouns = []string{
	"Oracle", "Owl", "Seer", "Otter", "Comet",
	"Badger", "Sage", "Heron", "Pilot", "Rabbit",
	"Maple", "Crane", "Scout", "Panda", "Meteor",
	"Quokka", "Whale", "Sparrow", "Koala", "Tiger",
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// GenerateNickname creates a random nickname in the format "Adjective_Noun_XXXX"
func GenerateNickname() (string, error) {
	adj, err := randomIndex(len(adjectives))
	if err != nil {
		return "", fmt.Errorf("failed to pick adjective: %w", err)
	}
	noun, err := randomIndex(len(nouns))
	if err != nil {
		return "", fmt.Errorf("failed to pick noun: %w", err)
	}
	suffix, err := randomIndex(10000)
	if err != nil {
		return "", fmt.Errorf("failed to pick suffix: %w", err)
	}

	return fmt.Sprintf("%s_%s_%04d", adjectives[adj], nouns[noun], suffix), nil
}

// FallbackNickname is shown for users that have no nickname yet
func FallbackNickname(userID uint) string {
	return fmt.Sprintf("User%04d", userID%10000)
}

// MaskNickname keeps the first and last rune and stars the rest.
// Two-rune names become first rune + "*".
func MaskNickname(name string) string {
	runes := []rune(name)
	switch len(runes) {
	case 0:
		return ""
	case 1:
		return string(runes)
	case 2:
		return string(runes[0]) + "*"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
