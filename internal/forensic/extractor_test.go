package forensic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsentry/internal/forensic"
	"winsentry/internal/model"
)

const failedLogonMessage = `An account failed to log on.

Subject:
	Security ID:		S-1-5-18
	Account Name:		-
	Account Domain:		-
	Logon ID:		0x3E7

Logon Type:			3

Account For Which Logon Failed:
	Security ID:		S-1-0-0
	Account Name:		administrator
	Account Domain:		CORP

Failure Information:
	Failure Reason:		Unknown user name or bad password.
	Status:			0xC000006D
	Sub Status:		0xC000006A

Network Information:
	Workstation Name:	KALI
	Source Network Address:	10.0.0.5
	Source Port:		51234`

func failureEvent(msg string) model.RawEvent {
	return model.RawEvent{
		ID:        forensic.FailedLogonEventID,
		Timestamp: time.Date(2026, 1, 8, 10, 15, 30, 0, time.UTC),
		Source:    "Microsoft-Windows-Security-Auditing",
		Message:   msg,
	}
}

func TestFailedLogonExtractor_Process(t *testing.T) {
	extractor := forensic.NewFailedLogonExtractor()

	tests := []struct {
		name   string
		event  model.RawEvent
		ip     string
		user   string
		status string
		reason string
	}{
		{
			name:   "Full Windows Message Without Failure Status Label",
			event:  failureEvent(failedLogonMessage),
			ip:     "10.0.0.5",
			user:   "administrator",
			status: model.Unknown,
			reason: forensic.UnknownReason,
		},
		{
			name:   "Mixed Case Status Is Normalized",
			event:  failureEvent("Account Name: bob\nFailure Status: 0xC000006A\nSource Network Address: 192.168.1.20"),
			ip:     "192.168.1.20",
			user:   "bob",
			status: "0xc000006a",
			reason: "Wrong Password (Brute-Force)",
		},
		{
			name:   "Status Outside Table",
			event:  failureEvent("Failure Status: 0xdeadbeef"),
			ip:     model.Unknown,
			user:   model.Unknown,
			status: "0xdeadbeef",
			reason: forensic.UnknownReason,
		},
		{
			name:   "Dash Source Address Is A Miss",
			event:  failureEvent("Account Name: alice\nSource Network Address: -\nFailure Status: 0xc0000064"),
			ip:     model.Unknown,
			user:   "alice",
			status: "0xc0000064",
			reason: "Non-existent User (Enumeration)",
		},
		{
			name:   "Empty Message",
			event:  failureEvent(""),
			ip:     model.Unknown,
			user:   model.Unknown,
			status: model.Unknown,
			reason: forensic.UnknownReason,
		},
		{
			name:   "Label Is Case Sensitive",
			event:  failureEvent("source network address: 10.1.1.1\naccount name: eve"),
			ip:     model.Unknown,
			user:   model.Unknown,
			status: model.Unknown,
			reason: forensic.UnknownReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := extractor.Process([]model.RawEvent{tt.event})
			require.Len(t, records, 1)

			rec := records[0]
			assert.Equal(t, tt.event, rec.RawEvent)
			assert.Equal(t, tt.ip, rec.SourceIP)
			assert.Equal(t, tt.user, rec.TargetUser)
			assert.Equal(t, tt.status, rec.StatusCode)
			assert.Equal(t, tt.reason, rec.FailureReason)
		})
	}
}

func TestFailedLogonExtractor_NonFailureEventsPassThrough(t *testing.T) {
	extractor := forensic.NewFailedLogonExtractor()
	ev := failureEvent("Account Name: bob\nFailure Status: 0xC000006A\nSource Network Address: 10.0.0.5")
	ev.ID = 4624

	records := extractor.Process([]model.RawEvent{ev})
	require.Len(t, records, 1)
	assert.Equal(t, model.Unknown, records[0].SourceIP)
	assert.Equal(t, model.Unknown, records[0].TargetUser)
	assert.Equal(t, model.Unknown, records[0].StatusCode)
	assert.Equal(t, model.Unknown, records[0].FailureReason)
}

func TestFailedLogonExtractor_EmptyInput(t *testing.T) {
	extractor := forensic.NewFailedLogonExtractor()

	assert.Empty(t, extractor.Process(nil))
	assert.Empty(t, extractor.Process([]model.RawEvent{}))
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, "Wrong Password (Brute-Force)", forensic.ReasonFor("0xC000006A"))
	assert.Equal(t, "Bad Username or Password", forensic.ReasonFor("0xc000006d"))
	assert.Equal(t, forensic.UnknownReason, forensic.ReasonFor("0xdeadbeef"))
	assert.Equal(t, forensic.UnknownReason, forensic.ReasonFor(model.Unknown))
}
