package realtime

import "github.com/google/uuid"

type roomKind uint8

const (
	roomUser roomKind = iota
	roomChat
)

// RoomKey names a broadcast group. User rooms and chat rooms live in
// separate key spaces, so a user id and a chat id can never collide.
type RoomKey struct {
	kind roomKind
	id   uuid.UUID
}

// UserRoom is the room every session of one user joins at setup.
func UserRoom(userID uuid.UUID) RoomKey {
	return RoomKey{kind: roomUser, id: userID}
}

// ChatRoom is the room a session joins when it opens a conversation view.
func ChatRoom(chatID uuid.UUID) RoomKey {
	return RoomKey{kind: roomChat, id: chatID}
}

func (k RoomKey) String() string {
	switch k.kind {
	case roomUser:
		return "user:" + k.id.String()
	case roomChat:
		return "chat:" + k.id.String()
	}
	return "unknown:" + k.id.String()
}
