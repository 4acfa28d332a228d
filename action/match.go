package action

import (
	"strings"

	"github.com/klchiu/waops/wa"
)

// Match returns the enabled rules triggered by an inbound message.
//
// A rule matches when the sender matches its source and the message
// body equals its trigger pattern case-insensitively (whole-body
// equality, not substring). Group-scoped rules match only group
// addresses by full JID; user-scoped rules match only direct addresses
// by bare id, so the same id string in a group address never triggers
// a user-scoped rule.
func Match(rules []Rule, senderJID, body string) []Rule {
	var matched []Rule
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !sourceMatches(r.Source, senderJID) {
			continue
		}
		if !strings.EqualFold(body, r.TriggerPattern) {
			continue
		}
		matched = append(matched, r.Clone())
	}
	return matched
}

func sourceMatches(src Source, senderJID string) bool {
	if src.Type == wa.ChatGroup {
		return wa.IsGroupJID(senderJID) && senderJID == wa.JID(src.ID, wa.ChatGroup)
	}
	return !wa.IsGroupJID(senderJID) && wa.BareID(senderJID) == wa.BareID(src.ID)
}
