package sys

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func TestAccessList(t *testing.T) {
	owner := snowflake.ID(1)
	other := snowflake.ID(2)

	open := NewAccessList(nil)
	assert.True(t, open.Allowed(other))
	assert.NoError(t, open.Check(other))

	closed := NewAccessList([]snowflake.ID{owner})
	assert.True(t, closed.Allowed(owner))
	assert.False(t, closed.Allowed(other))

	err := closed.Check(other)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	var none *AccessList
	assert.True(t, none.Allowed(other))
}
