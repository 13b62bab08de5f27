package relay

import (
	"encoding/json"
)

// Entity ids are opaque strings issued by the platform.
// Several envelope fields carry either a bare id string or a full object
// depending on the event family, so the reference types (User, Channel, File)
// tolerate both forms when decoding.

type Team struct {
	Id          string         `json:"id"`
	Name        string         `json:"name"`
	Domain      string         `json:"domain"`
	EmailDomain string         `json:"email_domain"`
	Plan        string         `json:"plan"`
	Prefs       map[string]any `json:"prefs"`
	Icon        map[string]any `json:"icon"`
}

type User struct {
	Id                 string              `json:"id"`
	Name               string              `json:"name"`
	TeamId             string              `json:"team_id"`
	Color              string              `json:"color"`
	RealName           string              `json:"real_name"`
	Tz                 string              `json:"tz"`
	TzLabel            string              `json:"tz_label"`
	TzOffset           int                 `json:"tz_offset"`
	Deleted            bool                `json:"deleted"`
	IsAdmin            bool                `json:"is_admin"`
	IsOwner            bool                `json:"is_owner"`
	IsPrimaryOwner     bool                `json:"is_primary_owner"`
	IsRestricted       bool                `json:"is_restricted"`
	IsUltraRestricted  bool                `json:"is_ultra_restricted"`
	IsBot              bool                `json:"is_bot"`
	Presence           string              `json:"presence"`
	Profile            *UserProfile        `json:"profile"`
	Preferences        map[string]any      `json:"prefs"`
	DoNotDisturbStatus *DoNotDisturbStatus `json:"dnd_status"`

	// ids of the user groups the user belongs to.
	// only tracked for the authenticated user.
	UserGroups map[string]string `json:"-"`
}

func (self *User) UnmarshalJSON(src []byte) error {
	if 0 < len(src) && src[0] == '"' {
		var id string
		if err := json.Unmarshal(src, &id); err != nil {
			return err
		}
		*self = User{Id: id}
		return nil
	}
	type userAlias User
	var alias userAlias
	if err := json.Unmarshal(src, &alias); err != nil {
		return err
	}
	*self = User(alias)
	return nil
}

type UserProfile struct {
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	RealName  string          `json:"real_name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Title     string          `json:"title"`
	Fields    ProfileFieldMap `json:"fields"`
}

// custom profile fields keyed by field id
type ProfileFieldMap map[string]*ProfileField

// the platform sends custom fields either as an object keyed by field id,
// as an array of field objects, or as null
func (self *ProfileFieldMap) UnmarshalJSON(src []byte) error {
	m := ProfileFieldMap{}
	if len(src) == 0 || string(src) == "null" {
		*self = m
		return nil
	}
	switch src[0] {
	case '[':
		var fields []*ProfileField
		if err := json.Unmarshal(src, &fields); err != nil {
			return err
		}
		for _, field := range fields {
			if field != nil && field.Id != "" {
				m[field.Id] = field
			}
		}
	default:
		var fields map[string]*ProfileField
		if err := json.Unmarshal(src, &fields); err != nil {
			return err
		}
		for id, field := range fields {
			if field == nil {
				continue
			}
			if field.Id == "" {
				field.Id = id
			}
			m[field.Id] = field
		}
	}
	*self = m
	return nil
}

type ProfileField struct {
	Id       string `json:"id"`
	Ordering *int   `json:"ordering"`
	Label    string `json:"label"`
	Hint     string `json:"hint"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Alt      string `json:"alt"`
}

// merge overwrites with the fields present in `other`
func (self *ProfileField) merge(other *ProfileField) {
	if other == nil {
		return
	}
	if other.Ordering != nil {
		self.Ordering = other.Ordering
	}
	if other.Label != "" {
		self.Label = other.Label
	}
	if other.Hint != "" {
		self.Hint = other.Hint
	}
	if other.Type != "" {
		self.Type = other.Type
	}
	if other.Value != "" {
		self.Value = other.Value
	}
	if other.Alt != "" {
		self.Alt = other.Alt
	}
}

// the schema block carried by team profile events
type TeamProfile struct {
	Fields []*ProfileField `json:"fields"`
}

type DoNotDisturbStatus struct {
	DndEnabled     bool  `json:"dnd_enabled"`
	NextDndStartTs int64 `json:"next_dnd_start_ts"`
	NextDndEndTs   int64 `json:"next_dnd_end_ts"`
	SnoozeEnabled  bool  `json:"snooze_enabled"`
	SnoozeEndtime  int64 `json:"snooze_endtime"`
}

type Property struct {
	Value   string `json:"value"`
	Creator string `json:"creator"`
	LastSet int64  `json:"last_set"`
}

type Channel struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	Created    int64     `json:"created"`
	Creator    string    `json:"creator"`
	IsChannel  bool      `json:"is_channel"`
	IsGroup    bool      `json:"is_group"`
	IsIm       bool      `json:"is_im"`
	IsMpim     bool      `json:"is_mpim"`
	IsGeneral  bool      `json:"is_general"`
	IsArchived bool      `json:"is_archived"`
	IsOpen     bool      `json:"is_open"`
	IsMember   bool      `json:"is_member"`
	User       string    `json:"user"`
	LastRead   string    `json:"last_read"`
	Members    []string  `json:"members"`
	Topic      *Property `json:"topic"`
	Purpose    *Property `json:"purpose"`

	// messages keyed by ts, unique per channel
	Messages map[string]*Message `json:"-"`
	// ids of users currently typing in this channel
	UsersTyping []string `json:"-"`
	PinnedItems []*Item  `json:"-"`
}

func (self *Channel) UnmarshalJSON(src []byte) error {
	if 0 < len(src) && src[0] == '"' {
		var id string
		if err := json.Unmarshal(src, &id); err != nil {
			return err
		}
		*self = Channel{Id: id}
		return nil
	}
	type channelAlias Channel
	var alias channelAlias
	if err := json.Unmarshal(src, &alias); err != nil {
		return err
	}
	*self = Channel(alias)
	return nil
}

type Message struct {
	Type      string      `json:"type"`
	Subtype   string      `json:"subtype"`
	Channel   string      `json:"channel"`
	User      string      `json:"user"`
	BotId     string      `json:"bot_id"`
	Text      string      `json:"text"`
	Ts        string      `json:"ts"`
	ThreadTs  string      `json:"thread_ts"`
	DeletedTs string      `json:"deleted_ts"`
	IsStarred bool        `json:"is_starred"`
	PinnedTo  []string    `json:"pinned_to"`
	Reactions ReactionMap `json:"reactions"`
}

// reactions keyed by reaction name
type ReactionMap map[string]*Reaction

// the wire form is an array of reaction objects
func (self *ReactionMap) UnmarshalJSON(src []byte) error {
	m := ReactionMap{}
	if len(src) == 0 || string(src) == "null" {
		*self = m
		return nil
	}
	var reactions []*Reaction
	if err := json.Unmarshal(src, &reactions); err != nil {
		return err
	}
	for _, reaction := range reactions {
		if reaction != nil && reaction.Name != "" {
			m[reaction.Name] = reaction
		}
	}
	*self = m
	return nil
}

type Reaction struct {
	Name string `json:"name"`
	// set of user ids who reacted
	Users map[string]bool `json:"-"`
}

func newReaction(name string, userId string) *Reaction {
	return &Reaction{
		Name:  name,
		Users: map[string]bool{userId: true},
	}
}

func (self *Reaction) UnmarshalJSON(src []byte) error {
	var alias struct {
		Name  string   `json:"name"`
		Users []string `json:"users"`
	}
	if err := json.Unmarshal(src, &alias); err != nil {
		return err
	}
	users := map[string]bool{}
	for _, userId := range alias.Users {
		users[userId] = true
	}
	*self = Reaction{
		Name:  alias.Name,
		Users: users,
	}
	return nil
}

type File struct {
	Id             string      `json:"id"`
	Created        int64       `json:"created"`
	Name           string      `json:"name"`
	Title          string      `json:"title"`
	Mimetype       string      `json:"mimetype"`
	Filetype       string      `json:"filetype"`
	PrettyType     string      `json:"pretty_type"`
	User           string      `json:"user"`
	Mode           string      `json:"mode"`
	IsPublic       bool        `json:"is_public"`
	IsStarred      bool        `json:"is_starred"`
	Stars          int         `json:"num_stars"`
	Channels       []string    `json:"channels"`
	Groups         []string    `json:"groups"`
	Ims            []string    `json:"ims"`
	InitialComment *Comment    `json:"initial_comment"`
	Reactions      ReactionMap `json:"reactions"`

	// comments keyed by comment id
	Comments map[string]*Comment `json:"-"`
}

func (self *File) UnmarshalJSON(src []byte) error {
	if 0 < len(src) && src[0] == '"' {
		var id string
		if err := json.Unmarshal(src, &id); err != nil {
			return err
		}
		*self = File{Id: id}
		return nil
	}
	type fileAlias File
	var alias fileAlias
	if err := json.Unmarshal(src, &alias); err != nil {
		return err
	}
	*self = File(alias)
	return nil
}

type Comment struct {
	Id        string      `json:"id"`
	Created   int64       `json:"created"`
	Timestamp int64       `json:"timestamp"`
	User      string      `json:"user"`
	Comment   string      `json:"comment"`
	Reactions ReactionMap `json:"reactions"`
}

type UserGroup struct {
	Id          string   `json:"id"`
	TeamId      string   `json:"team_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Handle      string   `json:"handle"`
	DateCreate  int64    `json:"date_create"`
	UserCount   int      `json:"user_count"`
	Users       []string `json:"users"`
}

type Bot struct {
	Id      string            `json:"id"`
	AppId   string            `json:"app_id"`
	Name    string            `json:"name"`
	Deleted bool              `json:"deleted"`
	Icons   map[string]string `json:"icons"`
}

const (
	ItemTypeMessage     = "message"
	ItemTypeFile        = "file"
	ItemTypeFileComment = "file_comment"
)

// Item is the polymorphic reference used by pin, star and reaction events to
// address a message in a channel, a file, or a file comment. Exactly one of
// the three addressing forms is populated, selected by Type.
type Item struct {
	Type          string   `json:"type"`
	Channel       string   `json:"channel"`
	Ts            string   `json:"ts"`
	Message       *Message `json:"message"`
	File          *File    `json:"file"`
	Comment       *Comment `json:"comment"`
	FileCommentId string   `json:"file_comment"`
}

// ts of the addressed message, from either the item itself or the
// nested message
func (self *Item) MessageTs() string {
	if self.Ts != "" {
		return self.Ts
	}
	if self.Message != nil {
		return self.Message.Ts
	}
	return ""
}

func (self *Item) FileId() string {
	if self.File != nil {
		return self.File.Id
	}
	return ""
}

func (self *Item) CommentId() string {
	if self.FileCommentId != "" {
		return self.FileCommentId
	}
	if self.Comment != nil {
		return self.Comment.Id
	}
	return ""
}

// Equal compares the addressing fields for the item's type.
// Pin removal matches the stored pin by this equality.
func (self *Item) Equal(other *Item) bool {
	if other == nil || self.Type != other.Type {
		return false
	}
	switch self.Type {
	case ItemTypeMessage:
		return self.Channel == other.Channel && self.MessageTs() == other.MessageTs()
	case ItemTypeFile:
		return self.FileId() == other.FileId()
	case ItemTypeFileComment:
		return self.FileId() == other.FileId() && self.CommentId() == other.CommentId()
	default:
		return false
	}
}
