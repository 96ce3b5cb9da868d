package transport

import (
	"encoding/json"
	"fmt"

	"tablechat/chat"
)

// Command wire names. Illustrative server contract; the server treats
// unknown types as errors, so the set here is closed.
const (
	cmdRegister      = "register"
	cmdJoinRoom      = "join-room"
	cmdLeaveRoom     = "leave-room"
	cmdSendMessage   = "send-message"
	cmdEditMessage   = "edit-message"
	cmdDeleteMessage = "delete-message"
	cmdTyping        = "typing"
)

// Command is an outbound frame before a correlation id is stamped on it.
// Optional fields are omitted from the wire encoding when empty.
type Command struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Body      string `json:"body,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
	IsTyping  *bool  `json:"is_typing,omitempty"`
}

func Register(userID string) Command {
	return Command{Type: cmdRegister, UserID: userID}
}

func JoinRoom(roomID string) Command {
	return Command{Type: cmdJoinRoom, RoomID: roomID}
}

func LeaveRoom(roomID string) Command {
	return Command{Type: cmdLeaveRoom, RoomID: roomID}
}

func SendMessage(roomID, body, imageRef string) Command {
	return Command{Type: cmdSendMessage, RoomID: roomID, Body: body, ImageRef: imageRef}
}

func EditMessage(roomID, messageID, newBody string) Command {
	return Command{Type: cmdEditMessage, RoomID: roomID, MessageID: messageID, Body: newBody}
}

func DeleteMessage(roomID, messageID string) Command {
	return Command{Type: cmdDeleteMessage, RoomID: roomID, MessageID: messageID}
}

func Typing(roomID string, isTyping bool) Command {
	return Command{Type: cmdTyping, RoomID: roomID, IsTyping: &isTyping}
}

// Inbound is the closed set of events a transport delivers to the client
// loop. Connection transitions are synthesized locally; the rest decode
// from server broadcast frames.
type Inbound interface {
	isInbound()
}

// StateChange announces a connection-state transition.
type StateChange struct {
	State chat.ConnectionState
}

// NewMessage is a broadcast message, delivered for every room member
// including the sender (the broadcast echo).
type NewMessage struct {
	Message chat.Message
}

// MessageEdited is a broadcast in-place body mutation.
type MessageEdited struct {
	RoomID    string
	MessageID string
	NewBody   string
}

// MessageDeleted is a broadcast tombstone.
type MessageDeleted struct {
	RoomID    string
	MessageID string
}

// UserTyping is a presence broadcast.
type UserTyping struct {
	Indicator chat.TypingIndicator
}

func (StateChange) isInbound()    {}
func (NewMessage) isInbound()     {}
func (MessageEdited) isInbound()  {}
func (MessageDeleted) isInbound() {}
func (UserTyping) isInbound()     {}

// wireFrame is the single JSON envelope shared by all frames in both
// directions. ID correlates command frames with their ack/error replies.
type wireFrame struct {
	ID        string                `json:"id,omitempty"`
	Type      string                `json:"type"`
	Code      string                `json:"code,omitempty"`
	Error     string                `json:"error,omitempty"`
	UserID    string                `json:"user_id,omitempty"`
	RoomID    string                `json:"room_id,omitempty"`
	MessageID string                `json:"message_id,omitempty"`
	Body      string                `json:"body,omitempty"`
	ImageRef  string                `json:"image_ref,omitempty"`
	NewBody   string                `json:"new_body,omitempty"`
	IsTyping  *bool                 `json:"is_typing,omitempty"`
	Message   *chat.Message         `json:"message,omitempty"`
	Typing    *chat.TypingIndicator `json:"typing,omitempty"`
}

const (
	frameAck            = "ack"
	frameError          = "error"
	frameNewMessage     = "new-message"
	frameMessageEdited  = "message-edited"
	frameMessageDeleted = "message-deleted"
	frameUserTyping     = "user-typing"
)

// decodeBroadcast maps a server push frame to its tagged variant. Ack and
// error frames are routed to pending calls before this is reached. A nil,
// nil return means the frame is well-formed but carries nothing to deliver
// (tolerated, logged by the caller).
func decodeBroadcast(f wireFrame) (Inbound, error) {
	switch f.Type {
	case frameNewMessage:
		if f.Message == nil {
			return nil, fmt.Errorf("new-message frame without message payload")
		}
		return NewMessage{Message: *f.Message}, nil
	case frameMessageEdited:
		if f.RoomID == "" || f.MessageID == "" {
			return nil, fmt.Errorf("message-edited frame missing room_id or message_id")
		}
		return MessageEdited{RoomID: f.RoomID, MessageID: f.MessageID, NewBody: f.NewBody}, nil
	case frameMessageDeleted:
		if f.RoomID == "" || f.MessageID == "" {
			return nil, fmt.Errorf("message-deleted frame missing room_id or message_id")
		}
		return MessageDeleted{RoomID: f.RoomID, MessageID: f.MessageID}, nil
	case frameUserTyping:
		if f.Typing == nil {
			return nil, fmt.Errorf("user-typing frame without indicator payload")
		}
		return UserTyping{Indicator: *f.Typing}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

func encodeCommand(id string, cmd Command) ([]byte, error) {
	f := wireFrame{
		ID:        id,
		Type:      cmd.Type,
		UserID:    cmd.UserID,
		RoomID:    cmd.RoomID,
		MessageID: cmd.MessageID,
		IsTyping:  cmd.IsTyping,
	}
	if cmd.Type == cmdEditMessage {
		f.NewBody = cmd.Body
	} else {
		f.Body = cmd.Body
		f.ImageRef = cmd.ImageRef
	}
	return json.Marshal(f)
}
