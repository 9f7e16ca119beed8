package realtime

import (
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/models"
)

// Room names. A principal's private room is keyed by role so that user and
// worker ids never share a room.
func UserRoom(id uuid.UUID) string    { return "user_" + id.String() }
func WorkerRoom(id uuid.UUID) string  { return "worker_" + id.String() }
func RequestRoom(id uuid.UUID) string { return "request_" + id.String() }

func RoomOf(p models.Principal) string {
	if p.Role == models.RoleWorker {
		return WorkerRoom(p.ID)
	}
	return UserRoom(p.ID)
}

// Server to client event names.
const (
	EventNewServiceRequest = "newServiceRequest"
	EventRequestAccepted   = "requestAccepted"
	EventRequestRejected   = "requestRejected"
	EventRequestCompleted  = "requestCompleted"
	EventRequestCancelled  = "requestCancelled"
	EventDashboardUpdate   = "dashboardUpdate"
	EventNewMessage        = "newMessage"
	EventNotification      = "notification"
	EventMessagesRead      = "messagesRead"
	EventUserTyping        = "userTyping"
	EventUserOnline        = "userOnline"
	EventError             = "error"
)

// Client to server event names.
const (
	ClientJoin         = "join"
	ClientJoinRequest  = "joinRequest"
	ClientLeaveRequest = "leaveRequest"
	ClientTyping       = "typing"
	ClientSetOnline    = "setOnline"
)
