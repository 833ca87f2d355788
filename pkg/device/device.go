// Package device holds the persisted model of a registered push target.
package device

import (
	"time"
	"unicode/utf8"
)

// Record is one registered device. RegistrationID is issued by the push
// provider and is the reconciliation key; ServiceID is the unique,
// human-readable name the device's notify service is exposed under.
type Record struct {
	EntryID        string    `json:"entry_id" firestore:"entry_id"`
	RegistrationID string    `json:"registration_id" firestore:"registration_id"`
	DeviceName     string    `json:"device_name" firestore:"device_name"`
	Production     bool      `json:"production" firestore:"production"`
	ServiceID      string    `json:"service_id" firestore:"service_id"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" firestore:"updated_at"`
}

// ShortID returns the trailing 8 characters of the registration id, which is
// what we log and use in generated titles.
func (r Record) ShortID() string {
	return ShortID(r.RegistrationID)
}

// ShortID trims a registration id to its last 8 characters (runes, not bytes).
func ShortID(registrationID string) string {
	if utf8.RuneCountInString(registrationID) <= 8 {
		return registrationID
	}
	runes := []rune(registrationID)
	return string(runes[len(runes)-8:])
}

// Title is the display title for the device's config entry.
func (r Record) Title() string {
	if r.DeviceName != "" {
		return r.DeviceName
	}
	return "Huian (" + r.ShortID() + ")"
}
