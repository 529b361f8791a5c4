package security

import (
	"crypto/sha256"
	"encoding/binary"
)

var nicknameAdjectives = []string{
	"brave", "bright", "clever", "cosmic", "curious", "daring", "gentle", "happy",
	"jolly", "kind", "lucky", "merry", "mighty", "quiet", "speedy", "sunny",
}

var nicknameAnimals = []string{
	"badger", "dolphin", "eagle", "fox", "hedgehog", "koala", "lion", "otter",
	"owl", "panda", "puffin", "rabbit", "seal", "tiger", "turtle", "wolf",
}

// Nickname returns a friendly "adjective-animal" name for a device, so
// children sharing a machine can tell which progress is theirs. The same
// device always gets the same name.
func Nickname(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	n := binary.BigEndian.Uint32(sum[:4])
	adj := nicknameAdjectives[n%uint32(len(nicknameAdjectives))]
	animal := nicknameAnimals[(n>>8)%uint32(len(nicknameAnimals))]
	return adj + "-" + animal
}
