package progress

import (
	"errors"
	"strings"

	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
)

// Reason names the rule a rejected session broke.
type Reason string

const (
	ReasonInvalidRange              Reason = "InvalidRange"
	ReasonExceedsBookLength         Reason = "ExceedsBookLength"
	ReasonZeroLengthSession         Reason = "ZeroLengthSession"
	ReasonWouldExceedRemainingPages Reason = "WouldExceedRemainingPages"
)

// Rejection is attached as Details to every validation error from Validate.
type Rejection struct {
	Reason Reason `json:"reason"`
	// MaxPages is the largest session length that would still be accepted.
	// Only set for WouldExceedRemainingPages.
	MaxPages *int `json:"max_pages,omitempty"`
}

func reject(reason Reason, msg string) error {
	return domainerrors.ValidationWithDetails(msg, Rejection{Reason: reason})
}

// Validate checks a session submission against the book's current progress.
//
// Rules run in order and the first failure wins:
//  1. both pages present and positive
//  2. endPage >= startPage
//  3. neither page beyond totalPages
//  4. a positive session length
//  5. an unfinished book may not be pushed past totalPages
//
// A finished book still accepts sessions; Reconcile clamps their effect.
func Validate(in SessionInput, snap Snapshot) (ValidatedSession, error) {
	if in.StartPage == nil || in.EndPage == nil || *in.StartPage <= 0 || *in.EndPage <= 0 {
		return ValidatedSession{}, reject(ReasonInvalidRange, "start and end page must be positive whole numbers")
	}
	start, end := *in.StartPage, *in.EndPage

	if end < start {
		return ValidatedSession{}, reject(ReasonInvalidRange, "end page cannot be before start page")
	}

	if snap.TotalPages != nil {
		total := *snap.TotalPages
		if start > total || end > total {
			return ValidatedSession{}, reject(ReasonExceedsBookLength,
				"pages cannot exceed the book's "+itoa(total)+" pages")
		}
	}

	sessionPages := end - start + 1
	if sessionPages <= 0 {
		return ValidatedSession{}, reject(ReasonZeroLengthSession, "session must cover at least one page")
	}

	if snap.TotalPages != nil {
		total := *snap.TotalPages
		if snap.PagesRead < total && snap.PagesRead+sessionPages > total {
			remaining := total - snap.PagesRead
			return ValidatedSession{}, domainerrors.ValidationWithDetails(
				"session would exceed the remaining pages; at most "+itoa(remaining)+" more pages can be logged",
				Rejection{Reason: ReasonWouldExceedRemainingPages, MaxPages: &remaining},
			)
		}
	}

	return ValidatedSession{
		StartPage:    start,
		EndPage:      end,
		SessionPages: sessionPages,
		Takeaway:     strings.TrimSpace(in.Takeaway),
		Date:         in.Date,
	}, nil
}

// ReasonOf extracts the rejection reason from an error returned by Validate.
func ReasonOf(err error) (Reason, bool) {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return "", false
	}
	rejection, ok := domainErr.Details.(Rejection)
	if !ok {
		return "", false
	}
	return rejection.Reason, true
}
