package voicemail

import (
	"errors"
	"time"
)

// Voicemail is one recorded message. StorageKey always begins with
// voicemail/{tenant_id}/ so objects cannot be addressed across tenants.
type Voicemail struct {
	ID              string    `json:"id" db:"id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	RecordingSid    string    `json:"recording_sid" db:"recording_sid"`
	CallSid         string    `json:"call_sid" db:"call_sid"`
	From            string    `json:"from" db:"from_number"`
	ExtensionCode   string    `json:"extension_code,omitempty" db:"extension_code"`
	StorageKey      string    `json:"-" db:"storage_key"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	Transcript      string    `json:"transcript,omitempty" db:"transcript"`
	Listened        bool      `json:"listened" db:"listened"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

var (
	ErrNotFound        = errors.New("voicemail: not found")
	ErrInvalidArgument = errors.New("voicemail: invalid argument")
)

const generalBox = "general"

// StorageKey namespaces recordings by tenant, then extension.
func StorageKey(tenantID, extensionCode, recordingSid string) string {
	box := extensionCode
	if box == "" {
		box = generalBox
	}
	return "voicemail/" + tenantID + "/" + box + "/" + recordingSid
}
