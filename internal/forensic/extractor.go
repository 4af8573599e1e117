package forensic

import (
	"regexp"
	"strings"

	"winsentry/internal/model"

	"github.com/rs/zerolog/log"
)

// FailedLogonEventID is the security event id for "An account failed to log on".
const FailedLogonEventID int64 = 4625

const UnknownReason = "Unknown Error"

// statusReasons maps lowercased NTSTATUS failure codes to a readable reason.
var statusReasons = map[string]string{
	"0xc0000064": "Non-existent User (Enumeration)",
	"0xc000006a": "Wrong Password (Brute-Force)",
	"0xc000006d": "Bad Username or Password",
	"0xc000006e": "Account Restriction",
	"0xc000006f": "Logon Outside Allowed Hours",
	"0xc0000070": "Unauthorized Workstation",
	"0xc0000071": "Password Expired",
	"0xc0000072": "Account Disabled",
	"0xc0000133": "Clock Skew Between DC and Host",
	"0xc000015b": "Logon Type Not Granted",
	"0xc0000193": "Account Expired",
	"0xc0000224": "Password Change Required",
	"0xc0000234": "Account Locked Out",
}

type Extractor interface {
	Process(events []model.RawEvent) []model.ForensicRecord
}

type failedLogonExtractor struct {
	ipRegex      *regexp.Regexp
	accountRegex *regexp.Regexp
	statusRegex  *regexp.Regexp
}

func NewFailedLogonExtractor() Extractor {
	return &failedLogonExtractor{
		ipRegex:      regexp.MustCompile(`Source Network Address:\s*([0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3})`),
		accountRegex: regexp.MustCompile(`Account Name:\s*([\p{L}\p{N}_]+)`),
		statusRegex:  regexp.MustCompile(`Failure Status:\s*(0x[0-9a-fA-F]+)`),
	}
}

// Process returns one record per input event, in input order. It never fails:
// a field that cannot be extracted is set to model.Unknown.
func (e *failedLogonExtractor) Process(events []model.RawEvent) []model.ForensicRecord {
	records := make([]model.ForensicRecord, len(events))
	extracted := 0
	for i, ev := range events {
		if ev.ID != FailedLogonEventID {
			records[i] = passthrough(ev)
			continue
		}
		records[i] = e.extract(ev)
		extracted++
	}
	if extracted > 0 {
		log.Debug().Int("events", len(events)).Int("failed_logons", extracted).Msg("Extracted forensic data from failure events")
	}
	return records
}

func (e *failedLogonExtractor) extract(ev model.RawEvent) model.ForensicRecord {
	rec := model.ForensicRecord{
		RawEvent:   ev,
		SourceIP:   firstGroup(e.ipRegex, ev.Message),
		TargetUser: firstGroup(e.accountRegex, ev.Message),
		StatusCode: firstGroup(e.statusRegex, ev.Message),
	}
	if rec.StatusCode != model.Unknown {
		rec.StatusCode = strings.ToLower(rec.StatusCode)
	}
	rec.FailureReason = ReasonFor(rec.StatusCode)
	return rec
}

// ReasonFor maps a status code to its reason; codes outside the table map to UnknownReason.
func ReasonFor(statusCode string) string {
	if reason, ok := statusReasons[strings.ToLower(statusCode)]; ok {
		return reason
	}
	return UnknownReason
}

func passthrough(ev model.RawEvent) model.ForensicRecord {
	return model.ForensicRecord{
		RawEvent:      ev,
		SourceIP:      model.Unknown,
		TargetUser:    model.Unknown,
		StatusCode:    model.Unknown,
		FailureReason: model.Unknown,
	}
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 || m[1] == "" {
		return model.Unknown
	}
	return m[1]
}
