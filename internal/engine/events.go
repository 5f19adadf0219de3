package engine

// Inbound event names (connection → engine).
const (
	EventSendLocation = "send-location"
	EventUpdateHQ     = "update-hq"
)

// Outbound event names (engine → connections).
const (
	EventReceiveLocation  = "receive-location"
	EventAlert            = "alert"
	EventETAUpdate        = "eta-update"
	EventUsersUpdate      = "users-update"
	EventUserDisconnected = "user-disconnected"
	EventDeliveryAssigned = "delivery-assigned"
	// update-hq is reused outbound: pushed to new connections and
	// broadcast on admin moves.
)
