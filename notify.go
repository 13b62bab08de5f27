package relay

// Notifications fired after each state change. Listeners receive read views
// of store entities and must not retain them past the call; the store may
// mutate or delete them on a later event.

type NotificationName string

const (
	NotificationMessageSent     NotificationName = "messageSent"
	NotificationMessageReceived NotificationName = "messageReceived"
	NotificationMessageChanged  NotificationName = "messageChanged"
	NotificationMessageDeleted  NotificationName = "messageDeleted"

	NotificationUserTyping            NotificationName = "userTyping"
	NotificationChannelMarked         NotificationName = "channelMarked"
	NotificationChannelCreated        NotificationName = "channelCreated"
	NotificationChannelDeleted        NotificationName = "channelDeleted"
	NotificationChannelJoined         NotificationName = "channelJoined"
	NotificationChannelLeft           NotificationName = "channelLeft"
	NotificationChannelRenamed        NotificationName = "channelRenamed"
	NotificationChannelArchived       NotificationName = "channelArchived"
	NotificationChannelHistoryChanged NotificationName = "channelHistoryChanged"

	NotificationDoNotDisturbUpdated     NotificationName = "doNotDisturbUpdated"
	NotificationDoNotDisturbUserUpdated NotificationName = "doNotDisturbUserUpdated"

	NotificationGroupOpened NotificationName = "groupOpened"

	NotificationFileProcessed      NotificationName = "fileProcessed"
	NotificationFileMadePrivate    NotificationName = "fileMadePrivate"
	NotificationFileDeleted        NotificationName = "fileDeleted"
	NotificationFileCommentAdded   NotificationName = "fileCommentAdded"
	NotificationFileCommentEdited  NotificationName = "fileCommentEdited"
	NotificationFileCommentDeleted NotificationName = "fileCommentDeleted"

	NotificationItemPinned   NotificationName = "itemPinned"
	NotificationItemUnpinned NotificationName = "itemUnpinned"
	NotificationItemStarred  NotificationName = "itemStarred"

	NotificationReactionAdded   NotificationName = "reactionAdded"
	NotificationReactionRemoved NotificationName = "reactionRemoved"

	NotificationPreferenceChanged NotificationName = "preferenceChanged"
	NotificationUserChanged       NotificationName = "userChanged"
	NotificationPresenceChanged   NotificationName = "presenceChanged"

	NotificationTeamJoined             NotificationName = "teamJoined"
	NotificationTeamPlanChanged        NotificationName = "teamPlanChanged"
	NotificationTeamPreferencesChanged NotificationName = "teamPreferencesChanged"
	NotificationTeamNameChanged        NotificationName = "teamNameChanged"
	NotificationTeamDomainChanged      NotificationName = "teamDomainChanged"
	NotificationTeamEmailDomainChanged NotificationName = "teamEmailDomainChanged"
	NotificationTeamEmojiChanged       NotificationName = "teamEmojiChanged"

	NotificationBotEvent NotificationName = "botEvent"

	NotificationSubteamEvent       NotificationName = "subteamEvent"
	NotificationSubteamSelfAdded   NotificationName = "subteamSelfAdded"
	NotificationSubteamSelfRemoved NotificationName = "subteamSelfRemoved"

	NotificationTeamProfileChanged   NotificationName = "teamProfileChanged"
	NotificationTeamProfileDeleted   NotificationName = "teamProfileDeleted"
	NotificationTeamProfileReordered NotificationName = "teamProfileReordered"

	NotificationManualPresenceChanged NotificationName = "manualPresenceChanged"

	NotificationClientDisconnected NotificationName = "clientDisconnected"
)

// Notification carries the payload fields relevant to its name.
// Unrelated fields are zero.
type Notification struct {
	Name NotificationName

	Message   *Message
	Channel   *Channel
	User      *User
	File      *File
	Comment   *Comment
	Item      *Item
	Bot       *Bot
	UserGroup *UserGroup
	DndStatus *DoNotDisturbStatus
	Profile   *TeamProfile

	Ts         string
	Reaction   string
	ItemUser   string
	SubteamId  string
	Preference string
	Value      any
	Presence   string
	Plan       string
	Domain     string
	TeamName   string
	Starred    bool
}

type NotificationFunction func(notification *Notification)
