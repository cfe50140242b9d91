package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want BookStatus
	}{
		{"want_to_read", StatusWantToRead},
		{"Want to Read", StatusWantToRead},
		{"WantToRead", StatusWantToRead},
		{"reading", StatusReading},
		{" Finished ", StatusFinished},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStatus("abandoned")
	assert.Error(t, err)
}

func TestBook_CloneDoesNotAliasTotal(t *testing.T) {
	b := &Book{TotalPages: IntPtr(300)}
	c := b.Clone()
	*c.TotalPages = 10

	assert.Equal(t, 300, b.Total())
	assert.Equal(t, 10, c.Total())
}

func TestBook_Percent(t *testing.T) {
	assert.Equal(t, -1, (&Book{PagesRead: 10}).Percent())
	assert.Equal(t, 25, (&Book{PagesRead: 50, TotalPages: IntPtr(200)}).Percent())
}

func TestSyncable_TouchBumpsRevision(t *testing.T) {
	var s Syncable
	now := time.Now()
	s.InitTimestamps(now)
	s.Touch(now.Add(time.Minute))

	assert.Equal(t, int64(1), s.Revision)
	assert.True(t, s.UpdatedAt.After(s.CreatedAt))
}

func TestUser_Name(t *testing.T) {
	assert.Equal(t, "ada", (&User{Email: "ada@example.com"}).Name())
	assert.Equal(t, "Ada L.", (&User{Email: "ada@example.com", DisplayName: "Ada L."}).Name())
}
