package events

import "fmt"

// ChannelResolver determines which Redis channels a notification is published to.
type ChannelResolver interface {
	ResolveChannels(n Notification) []string
}

// SessionChannelResolver routes to the session channel and the account channel.
type SessionChannelResolver struct{}

func NewSessionChannelResolver() *SessionChannelResolver {
	return &SessionChannelResolver{}
}

func (r *SessionChannelResolver) ResolveChannels(n Notification) []string {
	var channels []string
	if n.SessionID != "" {
		channels = append(channels, SessionChannel(n.SessionID))
	}
	if n.AccountID != "" {
		channels = append(channels, AccountChannel(n.AccountID))
	}
	return channels
}

func SessionChannel(sessionID string) string {
	return fmt.Sprintf("channel:session:%s", sessionID)
}

func AccountChannel(accountID string) string {
	return fmt.Sprintf("channel:account:%s", accountID)
}
