package sys

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
)

var ErrUnauthorized = errors.New("not allowed")

// AccessList restricts privileged commands to the configured owners. An empty
// list lets everyone through.
type AccessList struct {
	owners []snowflake.ID
}

func NewAccessList(owners []snowflake.ID) *AccessList {
	return &AccessList{owners: slices.Clone(owners)}
}

func (a *AccessList) Allowed(userID snowflake.ID) bool {
	if a == nil || len(a.owners) == 0 {
		return true
	}
	return slices.Contains(a.owners, userID)
}

func (a *AccessList) Check(userID snowflake.ID) error {
	if !a.Allowed(userID) {
		return errors.Wrapf(ErrUnauthorized, "user %s", userID)
	}
	return nil
}
