package models

import (
	"time"
	"unicode"
)

// RoomKind separates lecture halls from laboratories.
type RoomKind string

const (
	RoomKindLecture RoomKind = "LECTURE"
	RoomKindLab     RoomKind = "LAB"
)

// Room is a bookable teaching space.
type Room struct {
	ID         string    `db:"id" json:"id" validate:"required"`
	RoomNumber string    `db:"room_number" json:"room_number" validate:"required"`
	Capacity   int       `db:"capacity" json:"capacity" validate:"gt=0"`
	Kind       RoomKind  `db:"kind" json:"kind" validate:"oneof=LECTURE LAB"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Floor derives the building floor from the first digit of the room number.
// Zero means the number carries no digit.
func (r Room) Floor() int {
	for _, ch := range r.RoomNumber {
		if unicode.IsDigit(ch) {
			return int(ch - '0')
		}
	}
	return 0
}
