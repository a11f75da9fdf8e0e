package connection

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

// NANO ID
const ID_LENGTH = 21

func GenerateID() string {
	id, _ := nanoid.New()
	return id
}
