package relay

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestChannelRefDecode(t *testing.T) {
	// most events carry a bare channel id
	var event Event
	err := json.Unmarshal([]byte(`{"type":"user_typing","channel":"C024BE91L","user":"U1"}`), &event)
	assert.Equal(t, nil, err)
	assert.Equal(t, "C024BE91L", event.Channel.Id)
	assert.Equal(t, "U1", event.User.Id)

	// created/joined events carry the full object
	err = json.Unmarshal([]byte(`{"type":"channel_created","channel":{"id":"C1","name":"general","is_channel":true}}`), &event)
	assert.Equal(t, nil, err)
	assert.Equal(t, "C1", event.Channel.Id)
	assert.Equal(t, "general", event.Channel.Name)
	assert.Equal(t, true, event.Channel.IsChannel)
}

func TestReactionMapDecode(t *testing.T) {
	var message Message
	err := json.Unmarshal([]byte(`{
		"ts": "1.0",
		"text": "hi",
		"reactions": [
			{"name": "+1", "users": ["U1", "U2"], "count": 2},
			{"name": "eyes", "users": ["U1"], "count": 1}
		]
	}`), &message)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(message.Reactions))
	assert.Equal(t, true, message.Reactions["+1"].Users["U2"])
	assert.Equal(t, 1, len(message.Reactions["eyes"].Users))
}

func TestProfileFieldsDecodeBothForms(t *testing.T) {
	// user payloads key the custom fields by id
	var profile UserProfile
	err := json.Unmarshal([]byte(`{"fields":{"Xf0":{"value":"den","alt":""}}}`), &profile)
	assert.Equal(t, nil, err)
	assert.Equal(t, "den", profile.Fields["Xf0"].Value)
	assert.Equal(t, "Xf0", profile.Fields["Xf0"].Id)

	// schema events carry an array of field objects
	err = json.Unmarshal([]byte(`{"fields":[{"id":"Xf1","ordering":3,"label":"Office"}]}`), &profile)
	assert.Equal(t, nil, err)
	assert.Equal(t, "Office", profile.Fields["Xf1"].Label)
	assert.Equal(t, 3, *profile.Fields["Xf1"].Ordering)

	// empty array and null both decode to an empty map
	err = json.Unmarshal([]byte(`{"fields":[]}`), &profile)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(profile.Fields))
	err = json.Unmarshal([]byte(`{"fields":null}`), &profile)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(profile.Fields))
}

func TestItemFileRef(t *testing.T) {
	// reaction items address files by bare id
	var item Item
	err := json.Unmarshal([]byte(`{"type":"file","file":"F1"}`), &item)
	assert.Equal(t, nil, err)
	assert.Equal(t, "F1", item.FileId())

	// pin items carry the full file object
	err = json.Unmarshal([]byte(`{"type":"file","file":{"id":"F2","name":"report"}}`), &item)
	assert.Equal(t, nil, err)
	assert.Equal(t, "F2", item.FileId())

	err = json.Unmarshal([]byte(`{"type":"file_comment","file":"F1","file_comment":"Fc1"}`), &item)
	assert.Equal(t, nil, err)
	assert.Equal(t, "Fc1", item.CommentId())
}

func TestEscapeOutboundText(t *testing.T) {
	assert.Equal(t, "a &amp; b", escapeOutboundText("a & b"))
	assert.Equal(t, "&lt;script&gt;", escapeOutboundText("<script>"))
	assert.Equal(t, "plain", escapeOutboundText("plain"))
	// & escapes first so entities are not double escaped
	assert.Equal(t, "&amp;lt;", escapeOutboundText("&lt;"))
}
