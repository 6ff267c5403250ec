package model

import "context"

// Transport is the messaging collaborator the relay calls back into. All
// sends are bounded by the transport's own timeouts; a returned error is a
// reported delivery failure, never retried by the relay.
type Transport interface {
	// SendMessage sends a plain text message to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendOptions sends a message with interactive answer buttons.
	SendOptions(ctx context.Context, chatID int64, text string, options []Option) error
	// SendImage sends an image with a caption to a chat.
	SendImage(ctx context.Context, chatID int64, caption string, png []byte) error
	// ForwardToOperator forwards an inbound message verbatim to the operator
	// and returns the message id of the forwarded copy in the operator chat.
	ForwardToOperator(ctx context.Context, fromChatID, messageID int64) (int64, error)
	// CopyToUser delivers a message from the operator chat to a user without
	// the forwarding header, keeping the operator anonymous.
	CopyToUser(ctx context.Context, userID, fromChatID, messageID int64) error
}

// Option is one interactive answer button: a visible label and the opaque
// callback payload returned when the button is pressed.
type Option struct {
	Label string
	Data  string
}
