package relay

import (
	"encoding/json"
	"errors"

	"github.com/golang/glog"
)

// Hydrate populates the store from the one-time bulk snapshot, before any
// streamed event is processed. Individual records that fail to decode or
// carry no id are skipped; the remote feed can contain malformed or
// deprecated records and partial success is acceptable. Hydration fails at
// the top level only when the payload itself is absent.
func (self *Store) Hydrate(snapshot *Snapshot) error {
	if snapshot == nil {
		return errors.New("missing snapshot payload")
	}

	self.Team = snapshot.Team
	self.AuthenticatedUser = snapshot.Self
	if self.AuthenticatedUser != nil && snapshot.Dnd != nil {
		self.AuthenticatedUser.DoNotDisturbStatus = snapshot.Dnd
	}

	hydrateEach(snapshot.Users, self.PutUser)
	hydrateEach(snapshot.Channels, self.PutChannel)
	hydrateEach(snapshot.Groups, self.PutChannel)
	hydrateEach(snapshot.Mpims, self.PutChannel)
	hydrateEach(snapshot.Ims, self.PutChannel)
	hydrateEach(snapshot.Bots, self.PutBot)
	self.hydrateSubteams(snapshot.Subteams)

	return nil
}

func (self *Store) hydrateSubteams(subteams *SnapshotSubteams) {
	if subteams == nil {
		return
	}
	hydrateEach(subteams.All, self.PutUserGroup)
	if self.AuthenticatedUser != nil && 0 < len(subteams.Self) {
		if self.AuthenticatedUser.UserGroups == nil {
			self.AuthenticatedUser.UserGroups = map[string]string{}
		}
		for _, userGroupId := range subteams.Self {
			self.AuthenticatedUser.UserGroups[userGroupId] = userGroupId
		}
	}
}

// put returns false for records with a missing id, which are skipped the
// same as records that fail to decode
func hydrateEach[E any](records []json.RawMessage, put func(*E) bool) {
	for _, record := range records {
		var entity E
		if err := json.Unmarshal(record, &entity); err != nil {
			glog.V(2).Infof("[hydrate]skip record = %s\n", err)
			continue
		}
		if !put(&entity) {
			glog.V(2).Infof("[hydrate]skip record with missing id\n")
		}
	}
}
