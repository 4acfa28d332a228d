// Package wa is the boundary to the messaging session.
//
// The protocol session itself (pairing, socket reconnection, credential
// storage) is owned by an external sidecar process; this package formats
// chat addresses, defines the narrow interfaces the rest of waops
// consumes, and implements the bridge client that talks to the sidecar.
package wa

import "strings"

// Address suffixes used by the messaging protocol.
const (
	GroupSuffix = "@g.us"
	UserSuffix  = "@s.whatsapp.net"
)

// ChatType discriminates direct chats from group chats.
type ChatType string

const (
	ChatUser  ChatType = "user"
	ChatGroup ChatType = "group"
)

// JID normalizes a bare identifier into the protocol address format.
// Identifiers that already carry an address suffix pass through unchanged.
func JID(id string, typ ChatType) string {
	if strings.Contains(id, "@") {
		return id
	}
	if typ == ChatGroup {
		return id + GroupSuffix
	}
	return id + UserSuffix
}

// BareID strips the address suffix from a JID.
func BareID(jid string) string {
	if i := strings.Index(jid, "@"); i >= 0 {
		return jid[:i]
	}
	return jid
}

// IsGroupJID reports whether the address refers to a group chat.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, GroupSuffix)
}
