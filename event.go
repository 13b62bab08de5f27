package relay

// Event is one decoded envelope from the streaming transport. The payload
// shape varies by type tag; every field other than Type is optional and
// handlers tolerate absence of any of them.
type Event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`

	// set on the send-confirmation frame, which carries no type tag
	Ok      *bool  `json:"ok"`
	ReplyTo *int64 `json:"reply_to"`

	Ts        string `json:"ts"`
	EventTs   string `json:"event_ts"`
	DeletedTs string `json:"deleted_ts"`
	Text      string `json:"text"`

	// either a bare id or a full object, depending on the event family
	Channel *Channel `json:"channel"`
	User    *User    `json:"user"`

	ChannelId string `json:"channel_id"`

	Message *Message `json:"message"`
	File    *File    `json:"file"`
	Comment *Comment `json:"comment"`

	Item     *Item  `json:"item"`
	ItemUser string `json:"item_user"`
	Reaction string `json:"reaction"`

	Presence string `json:"presence"`

	Name  string `json:"name"`
	Value any    `json:"value"`

	Plan        string `json:"plan"`
	Domain      string `json:"domain"`
	EmailDomain string `json:"email_domain"`

	DndStatus *DoNotDisturbStatus `json:"dnd_status"`

	Bot       *Bot         `json:"bot"`
	Subteam   *UserGroup   `json:"subteam"`
	SubteamId string       `json:"subteam_id"`
	Profile   *TeamProfile `json:"profile"`
}

func (self *Event) channelId() string {
	if self.Channel != nil && self.Channel.Id != "" {
		return self.Channel.Id
	}
	return self.ChannelId
}

func (self *Event) userId() string {
	if self.User != nil {
		return self.User.Id
	}
	return ""
}

// inlineMessage builds the message carried at the top level of a plain
// message event
func (self *Event) inlineMessage() *Message {
	if self.Message != nil {
		return self.Message
	}
	if self.Ts == "" {
		return nil
	}
	return &Message{
		Type:    "message",
		Subtype: self.Subtype,
		Channel: self.channelId(),
		User:    self.userId(),
		Text:    self.Text,
		Ts:      self.Ts,
	}
}
