// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the view stream handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Player stream opened without a valid token.
	AdminOnlyError        = 3002 // Admin stream opened with a non-admin token.
	ViewStreamError       = 3003 // The observer loop stopped for a reason other than disconnect.
)
