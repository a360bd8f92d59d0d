// ABOUTME: Groups a user's flat message list into per-partner conversation threads
// ABOUTME: Stable first-seen grouping; callers sort the output explicitly if needed

package conversation

import (
	"sort"

	"github.com/subletify/subletify/internal/store"
)

// Conversation is a derived view of all messages between the viewing user
// and one partner. It is recomputed on demand and never persisted.
type Conversation struct {
	PartnerID   int64
	PartnerName string
	Messages    []*store.Message
}

// GroupByPartner splits a time-sorted message list into one Conversation per
// partner. The partner of each message is whichever of sender/recipient is
// not userID. Input order is preserved within each group, so a time-sorted
// input yields time-sorted groups; re-running on a grown list produces the
// same prefix (the grouping is order-stable and idempotent).
//
// Output order follows first-seen partner order in the input. Callers that
// want a specific inbox ordering apply SortByRecentActivity.
func GroupByPartner(userID int64, messages []*store.Message) []*Conversation {
	byPartner := make(map[int64]*Conversation)
	var ordered []*Conversation

	for _, msg := range messages {
		partnerID := msg.SenderID
		partnerName := msg.SenderName
		if msg.SenderID == userID {
			partnerID = msg.RecipientID
			partnerName = msg.RecipientName
		}

		conv, ok := byPartner[partnerID]
		if !ok {
			conv = &Conversation{
				PartnerID:   partnerID,
				PartnerName: partnerName,
			}
			byPartner[partnerID] = conv
			ordered = append(ordered, conv)
		}
		conv.Messages = append(conv.Messages, msg)
	}

	return ordered
}

// SortByRecentActivity orders conversations most-recent-activity-first,
// judged by each conversation's last message timestamp. Conversations with
// no messages sort last. The sort is stable so equal-activity conversations
// keep their first-seen order.
func SortByRecentActivity(conversations []*Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		mi, mj := conversations[i].Messages, conversations[j].Messages
		if len(mi) == 0 {
			return false
		}
		if len(mj) == 0 {
			return true
		}
		return mi[len(mi)-1].Timestamp.After(mj[len(mj)-1].Timestamp)
	})
}

// SortMessages re-sorts a conversation's message list by timestamp. Appends
// from the broadcast channel can arrive out of timestamp order relative to
// store-confirmed history; the list is near-sorted so this is cheap.
func SortMessages(messages []*store.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
