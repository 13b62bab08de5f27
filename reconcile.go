package relay

import (
	"strconv"
	"time"
)

// Reconciliation rules. One handler per event family. Each handler applies
// its merge to the store and fires one notification. Handlers are defensive:
// any missing optional field makes the event a no-op, never an error.
// All handlers run on the single reconcile flow with the state lock held.

func (self *Client) pongReceived(event *Event) {
	self.pongTime = time.Now()
	if !self.pingTime.IsZero() {
		self.roundTrip = self.pongTime.Sub(self.pingTime)
	}
}

// promote the staged local message under the confirmed ts
func (self *Client) messageSent(event *Event) {
	if event.ReplyTo == nil || event.Ts == "" {
		return
	}
	correlationId := strconv.FormatInt(*event.ReplyTo, 10)
	message, ok := self.store.PendingSentMessages[correlationId]
	if !ok || message.Channel == "" {
		return
	}
	message.Ts = event.Ts
	if event.Text != "" {
		message.Text = event.Text
	}
	delete(self.store.PendingSentMessages, correlationId)
	self.store.SetMessage(message.Channel, message)

	self.notify(&Notification{
		Name:    NotificationMessageSent,
		Message: message,
	})
}

func (self *Client) messageReceived(event *Event) {
	channelId := event.channelId()
	message := event.inlineMessage()
	if channelId == "" || message == nil || message.Ts == "" {
		return
	}
	if message.Channel == "" {
		message.Channel = channelId
	}
	self.store.SetMessage(channelId, message)

	self.notify(&Notification{
		Name:    NotificationMessageReceived,
		Message: message,
	})
}

// the changed message rides nested under the envelope's message field
func (self *Client) messageChanged(event *Event) {
	channelId := event.channelId()
	if channelId == "" || event.Message == nil || event.Message.Ts == "" {
		return
	}
	if event.Message.Channel == "" {
		event.Message.Channel = channelId
	}
	self.store.SetMessage(channelId, event.Message)

	self.notify(&Notification{
		Name:    NotificationMessageChanged,
		Message: event.Message,
	})
}

func (self *Client) messageDeleted(event *Event) {
	channelId := event.channelId()
	deletedTs := event.DeletedTs
	if deletedTs == "" && event.Message != nil {
		deletedTs = event.Message.DeletedTs
	}
	if channelId == "" || deletedTs == "" {
		return
	}
	// the previous value may be absent; notify either way
	message, _ := self.store.RemoveMessage(channelId, deletedTs)

	self.notify(&Notification{
		Name:    NotificationMessageDeleted,
		Message: message,
	})
}

func (self *Client) userTyping(event *Event) {
	channelId := event.channelId()
	userId := event.userId()
	if channelId == "" || userId == "" {
		return
	}
	// idempotent; only the first add notifies
	if !self.store.AddTypingUser(channelId, userId) {
		return
	}

	self.notify(&Notification{
		Name:    NotificationUserTyping,
		Channel: event.Channel,
		User:    event.User,
	})
	// TODO recalculate unreads when the channel read state is extended
}

func (self *Client) channelMarked(event *Event) {
	channelId := event.channelId()
	if channelId == "" {
		return
	}
	if channel, ok := self.store.Channel(channelId); ok {
		channel.LastRead = event.Ts
	}

	self.notify(&Notification{
		Name:    NotificationChannelMarked,
		Channel: event.Channel,
		Ts:      event.Ts,
	})
}

func (self *Client) channelCreated(event *Event) {
	if !self.store.PutChannel(event.Channel) {
		return
	}

	self.notify(&Notification{
		Name:    NotificationChannelCreated,
		Channel: event.Channel,
	})
}

func (self *Client) channelJoined(event *Event) {
	if !self.store.PutChannel(event.Channel) {
		return
	}

	self.notify(&Notification{
		Name:    NotificationChannelJoined,
		Channel: event.Channel,
	})
}

func (self *Client) channelDeleted(event *Event) {
	channelId := event.channelId()
	if channelId == "" {
		return
	}
	self.store.RemoveChannel(channelId)

	self.notify(&Notification{
		Name:    NotificationChannelDeleted,
		Channel: event.Channel,
	})
}

// leaving removes the authenticated user from the member set; the channel
// itself stays cached
func (self *Client) channelLeft(event *Event) {
	channelId := event.channelId()
	if channelId == "" || self.store.AuthenticatedUser == nil {
		return
	}
	userId := self.store.AuthenticatedUser.Id
	channel, ok := self.store.Channel(channelId)
	if !ok {
		return
	}
	members := []string{}
	removed := false
	for _, member := range channel.Members {
		if member == userId {
			removed = true
			continue
		}
		members = append(members, member)
	}
	if !removed {
		return
	}
	channel.Members = members

	self.notify(&Notification{
		Name:    NotificationChannelLeft,
		Channel: event.Channel,
	})
}

func (self *Client) channelRenamed(event *Event) {
	channelId := event.channelId()
	if channelId == "" || event.Channel == nil {
		return
	}
	if channel, ok := self.store.Channel(channelId); ok {
		channel.Name = event.Channel.Name
	}

	self.notify(&Notification{
		Name:    NotificationChannelRenamed,
		Channel: event.Channel,
	})
}

// shared by the archive and unarchive tags
func (self *Client) channelArchived(event *Event, archived bool) {
	channelId := event.channelId()
	if channelId == "" {
		return
	}
	if channel, ok := self.store.Channel(channelId); ok {
		channel.IsArchived = archived
	}

	self.notify(&Notification{
		Name:    NotificationChannelArchived,
		Channel: event.Channel,
	})
}

func (self *Client) channelHistoryChanged(event *Event) {
	if event.Channel == nil {
		return
	}
	// TODO reload cached history older than latest once deep backfill exists

	self.notify(&Notification{
		Name:    NotificationChannelHistoryChanged,
		Channel: event.Channel,
	})
}

func (self *Client) doNotDisturbUpdated(event *Event) {
	if event.DndStatus == nil {
		return
	}
	if self.store.AuthenticatedUser != nil {
		self.store.AuthenticatedUser.DoNotDisturbStatus = event.DndStatus
	}

	self.notify(&Notification{
		Name:      NotificationDoNotDisturbUpdated,
		DndStatus: event.DndStatus,
	})
}

func (self *Client) doNotDisturbUserUpdated(event *Event) {
	userId := event.userId()
	if event.DndStatus == nil || userId == "" {
		return
	}
	if user, ok := self.store.User(userId); ok {
		user.DoNotDisturbStatus = event.DndStatus
	}

	self.notify(&Notification{
		Name:      NotificationDoNotDisturbUserUpdated,
		DndStatus: event.DndStatus,
		User:      event.User,
	})
}

// shared by im/group open and close tags
func (self *Client) channelOpened(event *Event, open bool) {
	channelId := event.channelId()
	if channelId == "" {
		return
	}
	if channel, ok := self.store.Channel(channelId); ok {
		channel.IsOpen = open
	}

	self.notify(&Notification{
		Name:    NotificationGroupOpened,
		Channel: event.Channel,
	})
}

// shared upsert for the created/shared/unshared/public/change tags.
// comments already cached for the file survive the upsert, and the payload's
// initial comment is merged if not already present.
func (self *Client) processFile(event *Event) {
	file := event.File
	if file == nil || file.Id == "" {
		return
	}
	if previous, ok := self.store.File(file.Id); ok && previous.Comments != nil {
		file.Comments = previous.Comments
	}
	if comment := file.InitialComment; comment != nil && comment.Id != "" {
		if _, ok := file.Comments[comment.Id]; !ok {
			file.setComment(comment)
		}
	}
	self.store.PutFile(file)

	self.notify(&Notification{
		Name: NotificationFileProcessed,
		File: file,
	})
}

func (self *Client) fileMadePrivate(event *Event) {
	if event.File == nil || event.File.Id == "" {
		return
	}
	if file, ok := self.store.File(event.File.Id); ok {
		file.IsPublic = false
	}

	self.notify(&Notification{
		Name: NotificationFileMadePrivate,
		File: event.File,
	})
}

func (self *Client) fileDeleted(event *Event) {
	if event.File == nil || event.File.Id == "" {
		return
	}
	self.store.RemoveFile(event.File.Id)

	self.notify(&Notification{
		Name: NotificationFileDeleted,
		File: event.File,
	})
}

func (self *Client) fileCommentAdded(event *Event) {
	if event.File == nil || event.File.Id == "" || event.Comment == nil || event.Comment.Id == "" {
		return
	}
	if file, ok := self.store.File(event.File.Id); ok {
		file.setComment(event.Comment)
	}

	self.notify(&Notification{
		Name:    NotificationFileCommentAdded,
		File:    event.File,
		Comment: event.Comment,
	})
}

func (self *Client) fileCommentEdited(event *Event) {
	if event.File == nil || event.File.Id == "" || event.Comment == nil || event.Comment.Id == "" {
		return
	}
	if file, ok := self.store.File(event.File.Id); ok {
		if comment, ok := file.Comments[event.Comment.Id]; ok {
			comment.Comment = event.Comment.Comment
		}
	}

	self.notify(&Notification{
		Name:    NotificationFileCommentEdited,
		File:    event.File,
		Comment: event.Comment,
	})
}

func (self *Client) fileCommentDeleted(event *Event) {
	if event.File == nil || event.File.Id == "" || event.Comment == nil || event.Comment.Id == "" {
		return
	}
	if file, ok := self.store.File(event.File.Id); ok {
		delete(file.Comments, event.Comment.Id)
	}

	self.notify(&Notification{
		Name:    NotificationFileCommentDeleted,
		File:    event.File,
		Comment: event.Comment,
	})
}

func (self *Client) pinAdded(event *Event) {
	if event.ChannelId == "" || event.Item == nil {
		return
	}
	self.store.AddPinnedItem(event.ChannelId, event.Item)
	channel, _ := self.store.Channel(event.ChannelId)

	self.notify(&Notification{
		Name:    NotificationItemPinned,
		Item:    event.Item,
		Channel: channel,
	})
}

// removal matches the stored pin by item value equality. An envelope without
// an item still notifies; there is just no pin to match.
func (self *Client) pinRemoved(event *Event) {
	if event.ChannelId == "" {
		return
	}
	if event.Item != nil {
		self.store.RemovePinnedItem(event.ChannelId, event.Item)
	}
	channel, _ := self.store.Channel(event.ChannelId)

	self.notify(&Notification{
		Name:    NotificationItemUnpinned,
		Item:    event.Item,
		Channel: channel,
	})
}

// shared by the star added/removed tags
func (self *Client) itemStarred(event *Event, starred bool) {
	item := event.Item
	if item == nil || item.Type == "" {
		return
	}
	switch item.Type {
	case ItemTypeMessage:
		self.starMessage(item, starred)
	case ItemTypeFile:
		self.starFile(item, starred)
	case ItemTypeFileComment:
		self.starComment(item)
	}

	self.notify(&Notification{
		Name:    NotificationItemStarred,
		Item:    item,
		Starred: starred,
	})
}

func (self *Client) starMessage(item *Item, starred bool) {
	ts := item.MessageTs()
	if item.Channel == "" || ts == "" {
		return
	}
	if message, ok := self.store.Message(item.Channel, ts); ok {
		message.IsStarred = starred
	}
}

func (self *Client) starFile(item *Item, starred bool) {
	fileId := item.FileId()
	if fileId == "" {
		return
	}
	if file, ok := self.store.File(fileId); ok {
		file.setStarred(starred)
	}
}

func (self *Client) starComment(item *Item) {
	fileId := item.FileId()
	if fileId == "" || item.Comment == nil {
		return
	}
	if file, ok := self.store.File(fileId); ok {
		file.setComment(item.Comment)
	}
}

func (self *Client) reactionAdded(event *Event) {
	item := event.Item
	userId := event.userId()
	if item == nil || item.Type == "" || event.Reaction == "" || userId == "" {
		return
	}
	switch item.Type {
	case ItemTypeMessage:
		if message, ok := self.store.Message(item.Channel, item.MessageTs()); ok {
			addReaction(&message.Reactions, event.Reaction, userId)
		}
	case ItemTypeFile:
		if file, ok := self.store.File(item.FileId()); ok {
			addReaction(&file.Reactions, event.Reaction, userId)
		}
	case ItemTypeFileComment:
		if file, ok := self.store.File(item.FileId()); ok {
			if comment, ok := file.Comments[item.CommentId()]; ok {
				addReaction(&comment.Reactions, event.Reaction, userId)
			}
		}
	}

	self.notify(&Notification{
		Name:     NotificationReactionAdded,
		Reaction: event.Reaction,
		Item:     item,
		ItemUser: event.ItemUser,
	})
}

func (self *Client) reactionRemoved(event *Event) {
	item := event.Item
	userId := event.userId()
	if item == nil || item.Type == "" || event.Reaction == "" || userId == "" {
		return
	}
	switch item.Type {
	case ItemTypeMessage:
		if message, ok := self.store.Message(item.Channel, item.MessageTs()); ok {
			removeReaction(&message.Reactions, event.Reaction, userId)
		}
	case ItemTypeFile:
		if file, ok := self.store.File(item.FileId()); ok {
			removeReaction(&file.Reactions, event.Reaction, userId)
		}
	case ItemTypeFileComment:
		if file, ok := self.store.File(item.FileId()); ok {
			if comment, ok := file.Comments[item.CommentId()]; ok {
				removeReaction(&comment.Reactions, event.Reaction, userId)
			}
		}
	}

	self.notify(&Notification{
		Name:     NotificationReactionRemoved,
		Reaction: event.Reaction,
		Item:     item,
		ItemUser: event.ItemUser,
	})
}

func (self *Client) preferenceChanged(event *Event) {
	if event.Name == "" {
		return
	}
	if user := self.store.AuthenticatedUser; user != nil {
		if user.Preferences == nil {
			user.Preferences = map[string]any{}
		}
		user.Preferences[event.Name] = event.Value
	}

	self.notify(&Notification{
		Name:       NotificationPreferenceChanged,
		Preference: event.Name,
		Value:      event.Value,
	})
}

// the inbound user payload does not carry preferences, so the previously
// stored preferences survive the replace
func (self *Client) userChanged(event *Event) {
	user := event.User
	if user == nil || user.Id == "" {
		return
	}
	if previous, ok := self.store.User(user.Id); ok {
		user.Preferences = previous.Preferences
	}
	self.store.PutUser(user)

	self.notify(&Notification{
		Name: NotificationUserChanged,
		User: user,
	})
}

func (self *Client) presenceChanged(event *Event) {
	userId := event.userId()
	if userId == "" {
		return
	}
	if user, ok := self.store.User(userId); ok {
		user.Presence = event.Presence
	}

	self.notify(&Notification{
		Name:     NotificationPresenceChanged,
		User:     event.User,
		Presence: event.Presence,
	})
}

func (self *Client) teamJoined(event *Event) {
	if !self.store.PutUser(event.User) {
		return
	}

	self.notify(&Notification{
		Name: NotificationTeamJoined,
		User: event.User,
	})
}

func (self *Client) teamPlanChanged(event *Event) {
	if event.Plan == "" {
		return
	}
	if team := self.store.Team; team != nil {
		team.Plan = event.Plan
	}

	self.notify(&Notification{
		Name: NotificationTeamPlanChanged,
		Plan: event.Plan,
	})
}

func (self *Client) teamPreferenceChanged(event *Event) {
	if event.Name == "" {
		return
	}
	if team := self.store.Team; team != nil {
		if team.Prefs == nil {
			team.Prefs = map[string]any{}
		}
		team.Prefs[event.Name] = event.Value
	}

	self.notify(&Notification{
		Name:       NotificationTeamPreferencesChanged,
		Preference: event.Name,
		Value:      event.Value,
	})
}

func (self *Client) teamNameChanged(event *Event) {
	if event.Name == "" {
		return
	}
	if team := self.store.Team; team != nil {
		team.Name = event.Name
	}

	self.notify(&Notification{
		Name:     NotificationTeamNameChanged,
		TeamName: event.Name,
	})
}

func (self *Client) teamDomainChanged(event *Event) {
	if event.Domain == "" {
		return
	}
	if team := self.store.Team; team != nil {
		team.Domain = event.Domain
	}

	self.notify(&Notification{
		Name:   NotificationTeamDomainChanged,
		Domain: event.Domain,
	})
}

func (self *Client) teamEmailDomainChanged(event *Event) {
	if event.EmailDomain == "" {
		return
	}
	if team := self.store.Team; team != nil {
		team.EmailDomain = event.EmailDomain
	}

	self.notify(&Notification{
		Name:   NotificationTeamEmailDomainChanged,
		Domain: event.EmailDomain,
	})
}

// the custom emoji list is not cached here; notify only
func (self *Client) emojiChanged(event *Event) {
	self.notify(&Notification{
		Name: NotificationTeamEmojiChanged,
	})
}

func (self *Client) botEvent(event *Event) {
	if !self.store.PutBot(event.Bot) {
		return
	}

	self.notify(&Notification{
		Name: NotificationBotEvent,
		Bot:  event.Bot,
	})
}

func (self *Client) subteamEvent(event *Event) {
	if !self.store.PutUserGroup(event.Subteam) {
		return
	}

	self.notify(&Notification{
		Name:      NotificationSubteamEvent,
		UserGroup: event.Subteam,
	})
}

func (self *Client) subteamSelfAdded(event *Event) {
	if event.SubteamId == "" || self.store.AuthenticatedUser == nil {
		return
	}
	user := self.store.AuthenticatedUser
	if user.UserGroups == nil {
		user.UserGroups = map[string]string{}
	}
	user.UserGroups[event.SubteamId] = event.SubteamId

	self.notify(&Notification{
		Name:      NotificationSubteamSelfAdded,
		SubteamId: event.SubteamId,
	})
}

func (self *Client) subteamSelfRemoved(event *Event) {
	if event.SubteamId == "" || self.store.AuthenticatedUser == nil {
		return
	}
	delete(self.store.AuthenticatedUser.UserGroups, event.SubteamId)

	self.notify(&Notification{
		Name:      NotificationSubteamSelfRemoved,
		SubteamId: event.SubteamId,
	})
}

// profile schema changes are not scoped to individual users, so every
// cached user's custom-field map is kept structurally consistent
func (self *Client) teamProfileChanged(event *Event) {
	if event.Profile == nil {
		return
	}
	for _, user := range self.store.Users {
		if user.Profile == nil || user.Profile.Fields == nil {
			continue
		}
		for _, changed := range event.Profile.Fields {
			if changed == nil || changed.Id == "" {
				continue
			}
			if field, ok := user.Profile.Fields[changed.Id]; ok {
				field.merge(changed)
			}
		}
	}

	self.notify(&Notification{
		Name:    NotificationTeamProfileChanged,
		Profile: event.Profile,
	})
}

func (self *Client) teamProfileDeleted(event *Event) {
	if event.Profile == nil {
		return
	}
	for _, user := range self.store.Users {
		if user.Profile == nil {
			continue
		}
		for _, deleted := range event.Profile.Fields {
			if deleted == nil || deleted.Id == "" {
				continue
			}
			delete(user.Profile.Fields, deleted.Id)
		}
	}

	self.notify(&Notification{
		Name:    NotificationTeamProfileDeleted,
		Profile: event.Profile,
	})
}

func (self *Client) teamProfileReordered(event *Event) {
	if event.Profile == nil {
		return
	}
	for _, user := range self.store.Users {
		if user.Profile == nil || user.Profile.Fields == nil {
			continue
		}
		for _, reordered := range event.Profile.Fields {
			if reordered == nil || reordered.Id == "" || reordered.Ordering == nil {
				continue
			}
			if field, ok := user.Profile.Fields[reordered.Id]; ok {
				field.Ordering = reordered.Ordering
			}
		}
	}

	self.notify(&Notification{
		Name:    NotificationTeamProfileReordered,
		Profile: event.Profile,
	})
}

// no id lookup; the change applies to the authenticated user directly
func (self *Client) manualPresenceChanged(event *Event) {
	user := self.store.AuthenticatedUser
	if user == nil {
		return
	}
	user.Presence = event.Presence

	self.notify(&Notification{
		Name:     NotificationManualPresenceChanged,
		User:     user,
		Presence: event.Presence,
	})
}
