package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQuoted    Status = "quoted"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusDismissed Status = "dismissed"
)

var ErrInvalidStatus = errors.New("invalid status")

// Statuses lists every defined status in lifecycle order.
var Statuses = []Status{
	StatusNew, StatusContacted, StatusQuoted, StatusWon, StatusLost, StatusDismissed,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusDismissed
}

// ParseStatus accepts any casing/whitespace and rejects undefined values.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
