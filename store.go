package relay

import (
	"golang.org/x/exp/slices"
)

// Store is the authoritative in-memory mirror of the remote platform state.
// It is owned by the client's reconcile flow. All mutation goes through
// methods that keep the structural invariants: message maps keyed by ts,
// reaction entries deleted once their user set empties, star counts clamped
// at zero, idempotent typing membership.
type Store struct {
	Team              *Team
	AuthenticatedUser *User

	Channels   map[string]*Channel
	Users      map[string]*User
	UserGroups map[string]*UserGroup
	Bots       map[string]*Bot
	Files      map[string]*File

	// messages sent by the local session, keyed by correlation id,
	// pending server confirmation
	PendingSentMessages map[string]*Message
}

func NewStore() *Store {
	return &Store{
		Channels:            map[string]*Channel{},
		Users:               map[string]*User{},
		UserGroups:          map[string]*UserGroup{},
		Bots:                map[string]*Bot{},
		Files:               map[string]*File{},
		PendingSentMessages: map[string]*Message{},
	}
}

func (self *Store) Channel(channelId string) (*Channel, bool) {
	channel, ok := self.Channels[channelId]
	return channel, ok
}

func (self *Store) User(userId string) (*User, bool) {
	user, ok := self.Users[userId]
	return user, ok
}

func (self *Store) File(fileId string) (*File, bool) {
	file, ok := self.Files[fileId]
	return file, ok
}

func (self *Store) Bot(botId string) (*Bot, bool) {
	bot, ok := self.Bots[botId]
	return bot, ok
}

func (self *Store) UserGroup(userGroupId string) (*UserGroup, bool) {
	userGroup, ok := self.UserGroups[userGroupId]
	return userGroup, ok
}

func (self *Store) PutChannel(channel *Channel) bool {
	if channel == nil || channel.Id == "" {
		return false
	}
	self.Channels[channel.Id] = channel
	return true
}

func (self *Store) RemoveChannel(channelId string) (*Channel, bool) {
	channel, ok := self.Channels[channelId]
	if ok {
		delete(self.Channels, channelId)
	}
	return channel, ok
}

func (self *Store) PutUser(user *User) bool {
	if user == nil || user.Id == "" {
		return false
	}
	self.Users[user.Id] = user
	return true
}

func (self *Store) PutBot(bot *Bot) bool {
	if bot == nil || bot.Id == "" {
		return false
	}
	self.Bots[bot.Id] = bot
	return true
}

func (self *Store) PutFile(file *File) bool {
	if file == nil || file.Id == "" {
		return false
	}
	self.Files[file.Id] = file
	return true
}

func (self *Store) RemoveFile(fileId string) (*File, bool) {
	file, ok := self.Files[fileId]
	if ok {
		delete(self.Files, fileId)
	}
	return file, ok
}

func (self *Store) PutUserGroup(userGroup *UserGroup) bool {
	if userGroup == nil || userGroup.Id == "" {
		return false
	}
	self.UserGroups[userGroup.Id] = userGroup
	return true
}

// SetMessage inserts or overwrites at channel.Messages[ts]
func (self *Store) SetMessage(channelId string, message *Message) bool {
	channel, ok := self.Channels[channelId]
	if !ok || message == nil || message.Ts == "" {
		return false
	}
	if channel.Messages == nil {
		channel.Messages = map[string]*Message{}
	}
	channel.Messages[message.Ts] = message
	return true
}

func (self *Store) Message(channelId string, ts string) (*Message, bool) {
	channel, ok := self.Channels[channelId]
	if !ok || channel.Messages == nil {
		return nil, false
	}
	message, ok := channel.Messages[ts]
	return message, ok
}

func (self *Store) RemoveMessage(channelId string, ts string) (*Message, bool) {
	channel, ok := self.Channels[channelId]
	if !ok || channel.Messages == nil {
		return nil, false
	}
	message, ok := channel.Messages[ts]
	if ok {
		delete(channel.Messages, ts)
	}
	return message, ok
}

// AddTypingUser returns true only on the first add, so a burst of typing
// events for the same user notifies once
func (self *Store) AddTypingUser(channelId string, userId string) bool {
	channel, ok := self.Channels[channelId]
	if !ok || userId == "" {
		return false
	}
	if slices.Contains(channel.UsersTyping, userId) {
		return false
	}
	channel.UsersTyping = append(channel.UsersTyping, userId)
	return true
}

func (self *Store) RemoveTypingUser(channelId string, userId string) bool {
	channel, ok := self.Channels[channelId]
	if !ok {
		return false
	}
	i := slices.Index(channel.UsersTyping, userId)
	if i < 0 {
		return false
	}
	channel.UsersTyping = slices.Delete(channel.UsersTyping, i, i+1)
	return true
}

func (self *Store) AddPinnedItem(channelId string, item *Item) bool {
	channel, ok := self.Channels[channelId]
	if !ok || item == nil {
		return false
	}
	channel.PinnedItems = append(channel.PinnedItems, item)
	return true
}

// RemovePinnedItem removes pins matching the item by value equality
func (self *Store) RemovePinnedItem(channelId string, item *Item) bool {
	channel, ok := self.Channels[channelId]
	if !ok || item == nil {
		return false
	}
	pins := []*Item{}
	removed := false
	for _, pin := range channel.PinnedItems {
		if pin.Equal(item) {
			removed = true
			continue
		}
		pins = append(pins, pin)
	}
	channel.PinnedItems = pins
	return removed
}

// addReaction creates a singleton entry for a new name, else adds the user
// to the existing set. Adding the same (name, user) twice is idempotent.
func addReaction(reactions *ReactionMap, name string, userId string) {
	if name == "" || userId == "" {
		return
	}
	if *reactions == nil {
		*reactions = ReactionMap{}
	}
	if reaction, ok := (*reactions)[name]; ok {
		if reaction.Users == nil {
			reaction.Users = map[string]bool{}
		}
		reaction.Users[userId] = true
	} else {
		(*reactions)[name] = newReaction(name, userId)
	}
}

// removeReaction removes the user from the named entry and deletes the
// entry once its user set is empty
func removeReaction(reactions *ReactionMap, name string, userId string) {
	if *reactions == nil {
		return
	}
	reaction, ok := (*reactions)[name]
	if !ok {
		return
	}
	delete(reaction.Users, userId)
	if len(reaction.Users) == 0 {
		delete(*reactions, name)
	}
}

// setStarred flips the star flag and adjusts the count, clamped at zero
func (self *File) setStarred(starred bool) {
	self.IsStarred = starred
	if starred {
		self.Stars += 1
	} else if 0 < self.Stars {
		self.Stars -= 1
	}
}

func (self *File) setComment(comment *Comment) bool {
	if comment == nil || comment.Id == "" {
		return false
	}
	if self.Comments == nil {
		self.Comments = map[string]*Comment{}
	}
	self.Comments[comment.Id] = comment
	return true
}
