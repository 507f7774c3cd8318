// Package protocol defines the text lines exchanged with chat clients and the
// frame codec used by raw TCP clients.
package protocol

import "strings"

// System notices, each sent as the content of a single frame.
const (
	NoticeAlreadyConnected = "Already connected from this address!!"
	NoticeEmptyName        = "Blank names are not allowed!!! Refresh and try again."
	NoticeNameInUse        = "Someone is already using that name!!! Refresh and try again."
)

const (
	joinedSuffix = " joined."
	leftSuffix   = " left."
	chatSep      = ": "
)

// MessageType represents the type of message
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
	MessageTypeNotice
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	case MessageTypeNotice:
		return "NOTICE"
	default:
		return "UNKNOWN"
	}
}

// Message represents a chat line
type Message struct {
	Type    MessageType
	Sender  string
	Content string
}

// Joined formats the announcement published when name enters the room.
func Joined(name string) string {
	return name + joinedSuffix
}

// Left formats the announcement published when name leaves the room.
func Left(name string) string {
	return name + leftSuffix
}

// Chat formats a line of chat text sent by name.
func Chat(name, text string) string {
	return name + chatSep + text
}

// IsNotice reports whether line is one of the system notices.
func IsNotice(line string) bool {
	switch line {
	case NoticeAlreadyConnected, NoticeEmptyName, NoticeNameInUse:
		return true
	}
	return false
}

// String renders the message as it travels on the wire.
func (m Message) String() string {
	switch m.Type {
	case MessageTypeJoin:
		return Joined(m.Sender)
	case MessageTypeLeave:
		return Left(m.Sender)
	case MessageTypeNotice:
		return m.Content
	default:
		return Chat(m.Sender, m.Content)
	}
}

// Parse classifies a line received from the server.
// Names are free text, so a name containing ": " makes join and leave lines
// indistinguishable from chat; Parse prefers the chat reading in that case.
func Parse(line string) Message {
	if IsNotice(line) {
		return Message{Type: MessageTypeNotice, Content: line}
	}
	if sender, content, ok := strings.Cut(line, chatSep); ok {
		return Message{Type: MessageTypeText, Sender: sender, Content: content}
	}
	if name, ok := strings.CutSuffix(line, joinedSuffix); ok {
		return Message{Type: MessageTypeJoin, Sender: name}
	}
	if name, ok := strings.CutSuffix(line, leftSuffix); ok {
		return Message{Type: MessageTypeLeave, Sender: name}
	}
	return Message{Type: MessageTypeNotice, Content: line}
}
