package telephony

import "github.com/gorilla/websocket"

// Close codes used by the error taxonomy in spec §7.
const (
	CloseNormal          = websocket.CloseNormalClosure
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseInternalError   = websocket.CloseInternalServerErr
)
