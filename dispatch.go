package relay

import (
	"encoding/json"

	"github.com/golang/glog"
)

// Fixed dispatch table: type tag to reconciliation rule. Unrecognized tags
// are dropped without error or notification so that future event kinds do
// not break older clients.
//
// The group and im variants of the channel events route to the shared
// channel handlers; the platform uses distinct tags for the same merge.
var eventHandlers = map[string]func(*Client, *Event){
	"pong": (*Client).pongReceived,

	"message": (*Client).messageEvent,

	"user_typing": (*Client).userTyping,

	"channel_marked":          (*Client).channelMarked,
	"channel_created":         (*Client).channelCreated,
	"channel_joined":          (*Client).channelJoined,
	"channel_deleted":         (*Client).channelDeleted,
	"channel_left":            (*Client).channelLeft,
	"channel_rename":          (*Client).channelRenamed,
	"channel_archive":         func(self *Client, event *Event) { self.channelArchived(event, true) },
	"channel_unarchive":       func(self *Client, event *Event) { self.channelArchived(event, false) },
	"channel_history_changed": (*Client).channelHistoryChanged,

	"group_marked":          (*Client).channelMarked,
	"group_joined":          (*Client).channelJoined,
	"group_left":            (*Client).channelLeft,
	"group_rename":          (*Client).channelRenamed,
	"group_archive":         func(self *Client, event *Event) { self.channelArchived(event, true) },
	"group_unarchive":       func(self *Client, event *Event) { self.channelArchived(event, false) },
	"group_history_changed": (*Client).channelHistoryChanged,
	"group_open":            func(self *Client, event *Event) { self.channelOpened(event, true) },
	"group_close":           func(self *Client, event *Event) { self.channelOpened(event, false) },

	"im_created": (*Client).channelCreated,
	"im_marked":  (*Client).channelMarked,
	"im_open":    func(self *Client, event *Event) { self.channelOpened(event, true) },
	"im_close":   func(self *Client, event *Event) { self.channelOpened(event, false) },

	"dnd_updated":      (*Client).doNotDisturbUpdated,
	"dnd_updated_user": (*Client).doNotDisturbUserUpdated,

	"file_created":         (*Client).processFile,
	"file_shared":          (*Client).processFile,
	"file_unshared":        (*Client).processFile,
	"file_public":          (*Client).processFile,
	"file_change":          (*Client).processFile,
	"file_private":         (*Client).fileMadePrivate,
	"file_deleted":         (*Client).fileDeleted,
	"file_comment_added":   (*Client).fileCommentAdded,
	"file_comment_edited":  (*Client).fileCommentEdited,
	"file_comment_deleted": (*Client).fileCommentDeleted,

	"pin_added":   (*Client).pinAdded,
	"pin_removed": (*Client).pinRemoved,

	"star_added":   func(self *Client, event *Event) { self.itemStarred(event, true) },
	"star_removed": func(self *Client, event *Event) { self.itemStarred(event, false) },

	"reaction_added":   (*Client).reactionAdded,
	"reaction_removed": (*Client).reactionRemoved,

	"pref_change":     (*Client).preferenceChanged,
	"user_change":     (*Client).userChanged,
	"presence_change": (*Client).presenceChanged,

	"team_join":           (*Client).teamJoined,
	"team_plan_change":    (*Client).teamPlanChanged,
	"team_pref_change":    (*Client).teamPreferenceChanged,
	"team_rename":         (*Client).teamNameChanged,
	"team_domain_change":  (*Client).teamDomainChanged,
	"email_domain_change": (*Client).teamEmailDomainChanged,
	"emoji_changed":       (*Client).emojiChanged,

	"bot_added":   (*Client).botEvent,
	"bot_changed": (*Client).botEvent,

	"subteam_created":      (*Client).subteamEvent,
	"subteam_updated":      (*Client).subteamEvent,
	"subteam_self_added":   (*Client).subteamSelfAdded,
	"subteam_self_removed": (*Client).subteamSelfRemoved,

	"team_profile_change":  (*Client).teamProfileChanged,
	"team_profile_delete":  (*Client).teamProfileDeleted,
	"team_profile_reorder": (*Client).teamProfileReordered,

	"manual_presence_change": (*Client).manualPresenceChanged,
}

// message events sub-dispatch on subtype
func (self *Client) messageEvent(event *Event) {
	switch event.Subtype {
	case "message_changed":
		self.messageChanged(event)
	case "message_deleted":
		self.messageDeleted(event)
	default:
		self.messageReceived(event)
	}
}

// dispatchFrame decodes one inbound text frame and applies it. Dispatch is
// synchronous: the event is fully reconciled and its notifications fired
// before the next frame is read, so events are never reordered.
func (self *Client) dispatchFrame(frame []byte) {
	var event Event
	if err := json.Unmarshal(frame, &event); err != nil {
		glog.V(2).Infof("[e]drop malformed frame = %s\n", err)
		return
	}
	self.dispatchEvent(&event)
}

func (self *Client) dispatchEvent(event *Event) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if event.Type == "" {
			// the send confirmation carries no type tag
			if event.ReplyTo != nil {
				self.messageSent(event)
			}
			return
		}
		handler, ok := eventHandlers[event.Type]
		if !ok {
			glog.V(2).Infof("[e]drop unknown type %s\n", event.Type)
			return
		}
		handler(self, event)
	}()

	self.flushNotifications()
}
