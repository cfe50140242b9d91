package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
)

func pages(start, end int) SessionInput {
	return SessionInput{StartPage: domain.IntPtr(start), EndPage: domain.IntPtr(end)}
}

func snapshot(total *int, read int) Snapshot {
	return Snapshot{
		BookID:     "book-1",
		OwnerID:    "user-1",
		Status:     domain.StatusWantToRead,
		TotalPages: total,
		PagesRead:  read,
		Revision:   1,
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		input  SessionInput
		snap   Snapshot
		reason Reason
	}{
		{"missing start", SessionInput{EndPage: domain.IntPtr(10)}, snapshot(nil, 0), ReasonInvalidRange},
		{"missing end", SessionInput{StartPage: domain.IntPtr(1)}, snapshot(nil, 0), ReasonInvalidRange},
		{"zero start", pages(0, 10), snapshot(nil, 0), ReasonInvalidRange},
		{"negative end", pages(1, -5), snapshot(nil, 0), ReasonInvalidRange},
		{"end before start", pages(20, 10), snapshot(nil, 0), ReasonInvalidRange},
		{"end past book", pages(51, 120), snapshot(domain.IntPtr(100), 50), ReasonExceedsBookLength},
		{"start past book", pages(150, 150), snapshot(domain.IntPtr(100), 0), ReasonExceedsBookLength},
		{"overshoots remaining", pages(1, 60), snapshot(domain.IntPtr(100), 50), ReasonWouldExceedRemainingPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.input, tt.snap)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			reason, ok := ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidate_WithinRemainingPagesAccepted(t *testing.T) {
	v, err := Validate(pages(51, 80), snapshot(domain.IntPtr(100), 50))
	require.NoError(t, err)
	assert.Equal(t, 30, v.SessionPages)
}

func TestValidate_ReportsMaxAdditionalPages(t *testing.T) {
	_, err := Validate(pages(1, 60), snapshot(domain.IntPtr(100), 50))
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	rejection, ok := domainErr.Details.(Rejection)
	require.True(t, ok)
	require.NotNil(t, rejection.MaxPages)
	assert.Equal(t, 50, *rejection.MaxPages)
	assert.Contains(t, domainErr.Message, "50")
}

func TestValidate_FinishedBookAcceptsOverLogging(t *testing.T) {
	v, err := Validate(pages(1, 100), snapshot(domain.IntPtr(100), 100))
	require.NoError(t, err)
	assert.Equal(t, 100, v.SessionPages)
}

func TestValidate_UnknownLengthHasNoUpperBound(t *testing.T) {
	v, err := Validate(pages(900, 1200), snapshot(nil, 5000))
	require.NoError(t, err)
	assert.Equal(t, 301, v.SessionPages)
}

func TestValidate_SinglePageSession(t *testing.T) {
	v, err := Validate(pages(7, 7), snapshot(domain.IntPtr(10), 0))
	require.NoError(t, err)
	assert.Equal(t, 1, v.SessionPages)
}

func TestValidate_TrimsTakeaway(t *testing.T) {
	in := pages(1, 2)
	in.Takeaway = "  the spice must flow \n"
	v, err := Validate(in, snapshot(nil, 0))
	require.NoError(t, err)
	assert.Equal(t, "the spice must flow", v.Takeaway)
}

func TestReasonOf_ForeignError(t *testing.T) {
	_, ok := ReasonOf(domainerrors.NotFound("nope"))
	assert.False(t, ok)
}
