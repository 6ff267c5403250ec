package model

// InboundMessage is one message event from an end user.
type InboundMessage struct {
	MessageID int64
	From      UserProfile
	// Text is the message text; empty for media messages.
	Text string
	// Caption is the media caption, when present.
	Caption string
}

// Content returns the filterable text of the message: the text, or the
// caption for media messages.
func (m InboundMessage) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// CallbackEvent is one interactive-button press.
type CallbackEvent struct {
	From UserProfile
	Data string
}

// OperatorReply is an operator message sent as a reply to an earlier message
// in the operator chat. The content itself stays inside the transport and is
// delivered verbatim via Transport.CopyToUser.
type OperatorReply struct {
	// MessageID is the id of the operator's own reply message.
	MessageID int64
	// RepliedMessageID is the id of the message the operator replied to.
	RepliedMessageID int64
	// RepliedIsRelay is set when the replied-to message was produced by the
	// relay itself (an echo wrapping a deeper original).
	RepliedIsRelay bool
	// EchoOfMessageID is the id of the message the relay echo replied to,
	// when known; zero otherwise.
	EchoOfMessageID int64
}

// OperatorCommand is a slash command issued by the operator.
type OperatorCommand struct {
	Command string
	Args    string
	// Reply is present for reply-scoped commands (block, unblock, info).
	Reply *OperatorReply
}
