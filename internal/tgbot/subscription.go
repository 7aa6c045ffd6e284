package tgbot

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Statuses that count as being inside a chat.
var subscribedStatuses = map[string]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
	"restricted":    true,
}

type SubscriptionDebug struct {
	Public  *string `json:"public"`
	Private *string `json:"private"`
}

type SubscriptionResult struct {
	IsPublicSubscribed  bool               `json:"isPublicSubscribed"`
	IsPrivateSubscribed bool               `json:"isPrivateSubscribed"`
	Bypassed            bool               `json:"bypassed,omitempty"`
	Debug               *SubscriptionDebug `json:"debug,omitempty"`
	InviteLink          string             `json:"inviteLink,omitempty"`
}

// SubscriptionChecker gates the Mini App behind a public channel and a
// private group. Without a bot it fails open.
type SubscriptionChecker struct {
	Members         MemberChecker
	PublicChannelID string
	PrivateGroupID  string
	InviteLink      string
}

func (s *SubscriptionChecker) Check(userID string) SubscriptionResult {
	if s.Members == nil {
		return SubscriptionResult{IsPublicSubscribed: true, IsPrivateSubscribed: true, Bypassed: true, InviteLink: s.InviteLink}
	}

	var pub, priv channelCheck
	var g errgroup.Group
	g.Go(func() error { pub = s.checkOne(s.PublicChannelID, userID); return nil })
	g.Go(func() error { priv = s.checkOne(s.PrivateGroupID, userID); return nil })
	_ = g.Wait()

	return SubscriptionResult{
		IsPublicSubscribed:  pub.subscribed,
		IsPrivateSubscribed: priv.subscribed,
		Debug:               &SubscriptionDebug{Public: pub.debug, Private: priv.debug},
		InviteLink:          s.InviteLink,
	}
}

type channelCheck struct {
	subscribed bool
	debug      *string
}

func (s *SubscriptionChecker) checkOne(chatID, userID string) channelCheck {
	if chatID == "" {
		return notSubscribed("No channel ID provided")
	}
	status, err := s.Members.ChatMemberStatus(chatID, userID)
	if err != nil {
		if desc, ok := apiErrorMessage(err); ok {
			return notSubscribed("Telegram API Error: " + desc)
		}
		return notSubscribed("Fetch error: " + err.Error())
	}
	if subscribedStatuses[status] {
		return channelCheck{subscribed: true}
	}
	return notSubscribed(fmt.Sprintf("User status: %q", status))
}

func notSubscribed(debug string) channelCheck {
	return channelCheck{debug: &debug}
}
