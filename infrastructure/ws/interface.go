package ws

// IHub is the routing table from user id to that user's live connections.
// Implementations must support concurrent register/unregister/lookup; the
// send path holds no lock across delivery.
type IHub interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	// SendToUser pushes message to every live connection registered for
	// userId on this node. Non-blocking best effort; returns the number of
	// connections the push was accepted by.
	SendToUser(userId string, message []byte) int
	// ConnectionCount returns how many connections userId currently has
	// registered on this node.
	ConnectionCount(userId string) int
	SetOnUserOffline(callback func(userId string))
}
