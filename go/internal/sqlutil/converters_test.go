package sqlutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRoundTrip(t *testing.T) {
	assert.False(t, ToSqlTime(nil).Valid)
	assert.Nil(t, FromSqlTime(ToSqlTime(nil)))

	now := time.Now()
	got := FromSqlTime(ToSqlTime(&now))
	require.NotNil(t, got)
	assert.True(t, now.Equal(*got))
}

func TestBoolRoundTrip(t *testing.T) {
	assert.Nil(t, FromSqlBool(ToSqlBool(nil)))

	f := false
	got := FromSqlBool(ToSqlBool(&f))
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestString(t *testing.T) {
	assert.False(t, ToSqlString("").Valid)
	assert.Equal(t, "x", FromSqlString(ToSqlString("x"), "d"))
	assert.Equal(t, "d", FromSqlString(ToSqlString(""), "d"))
}
