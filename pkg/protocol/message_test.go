package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/broadcast-chat/pkg/protocol"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "alice joined.", protocol.Joined("alice"))
	assert.Equal(t, "alice left.", protocol.Left("alice"))
	assert.Equal(t, "alice: hi there", protocol.Chat("alice", "hi there"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want protocol.Message
	}{
		{
			name: "chat line",
			line: "alice: hello: world",
			want: protocol.Message{Type: protocol.MessageTypeText, Sender: "alice", Content: "hello: world"},
		},
		{
			name: "join announcement",
			line: "bob joined.",
			want: protocol.Message{Type: protocol.MessageTypeJoin, Sender: "bob"},
		},
		{
			name: "leave announcement",
			line: "bob left.",
			want: protocol.Message{Type: protocol.MessageTypeLeave, Sender: "bob"},
		},
		{
			name: "chat text that looks like an announcement",
			line: "alice: bob left.",
			want: protocol.Message{Type: protocol.MessageTypeText, Sender: "alice", Content: "bob left."},
		},
		{
			name: "system notice",
			line: protocol.NoticeNameInUse,
			want: protocol.Message{Type: protocol.MessageTypeNotice, Content: protocol.NoticeNameInUse},
		},
		{
			name: "unrecognised line",
			line: "server restarting",
			want: protocol.Message{Type: protocol.MessageTypeNotice, Content: "server restarting"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.Parse(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.line, got.String())
		})
	}
}

func TestIsNotice(t *testing.T) {
	assert.True(t, protocol.IsNotice(protocol.NoticeAlreadyConnected))
	assert.True(t, protocol.IsNotice(protocol.NoticeEmptyName))
	assert.True(t, protocol.IsNotice(protocol.NoticeNameInUse))
	assert.False(t, protocol.IsNotice("alice joined."))
}

func TestMessageType_String(t *testing.T) {
	tests := []struct {
		mt   protocol.MessageType
		want string
	}{
		{protocol.MessageTypeText, "TEXT"},
		{protocol.MessageTypeJoin, "JOIN"},
		{protocol.MessageTypeLeave, "LEAVE"},
		{protocol.MessageTypeNotice, "NOTICE"},
		{protocol.MessageType(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mt.String())
		})
	}
}
