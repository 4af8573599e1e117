package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"winsentry/internal/forensic"
	"winsentry/internal/model"

	"github.com/rs/zerolog/log"
)

const failedLogonTemplate = `An account failed to log on.

Subject:
	Security ID:		S-1-0-0
	Account Name:		-
	Account Domain:		-
	Logon ID:		0x0

Logon Type:			3

Account For Which Logon Failed:
	Security ID:		S-1-0-0
	Account Name:		%s
	Account Domain:		WORKGROUP

Failure Information:
	Failure Reason:		Unknown user name or bad password.
	Failure Status:		%s
	Sub Status:		%s

Network Information:
	Workstation Name:	-
	Source Network Address:	%s
	Source Port:		%d`

const defaultProvider = "Microsoft-Windows-Security-Auditing"

// Attempt is one synthetic failed logon.
type Attempt struct {
	IP     string
	User   string
	Status string
}

// FailedLogonMessage renders a rendered-message body the extractor understands.
func FailedLogonMessage(a Attempt, port int) string {
	return fmt.Sprintf(failedLogonTemplate, a.User, a.Status, a.Status, a.IP, port)
}

// Events turns attempts into 4625 events, newest last, spaced by step and ending at end.
func Events(attempts []Attempt, end time.Time, step time.Duration) []model.RawEvent {
	events := make([]model.RawEvent, len(attempts))
	for i, a := range attempts {
		events[i] = model.RawEvent{
			ID:        forensic.FailedLogonEventID,
			Timestamp: end.Add(-time.Duration(len(attempts)-1-i) * step),
			Source:    defaultProvider,
			Message:   FailedLogonMessage(a, 49152+i%16384),
		}
	}
	return events
}

// ReadCSV reads ip,user,status rows. A header row starting with "ip" is skipped
// and a missing status defaults to a wrong password.
func ReadCSV(r io.Reader) ([]Attempt, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var attempts []Attempt
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "ip") {
			continue
		}
		if len(record) < 2 {
			log.Warn().Int("line", line).Msg("Skipping CSV row without ip and user")
			continue
		}
		a := Attempt{IP: strings.TrimSpace(record[0]), User: strings.TrimSpace(record[1]), Status: "0xC000006A"}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			a.Status = strings.TrimSpace(record[2])
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

var (
	sampleUsers    = []string{"administrator", "admin", "guest", "backup", "svc_sql", "jdoe", "test"}
	sampleStatuses = []string{"0xC000006A", "0xC000006A", "0xC0000064", "0xC0000234", "0xC0000072", "0xC000006F"}
)

// Generate returns n attempts drawn from a small pool of attackers so a top
// offender emerges.
func Generate(n int, rng *rand.Rand) []Attempt {
	attackers := []string{"10.0.0.5", "192.168.1.77", "203.0.113.9", "198.51.100.23"}
	attempts := make([]Attempt, n)
	for i := range attempts {
		ip := attackers[0]
		if rng.Intn(3) > 0 {
			ip = attackers[rng.Intn(len(attackers))]
		}
		attempts[i] = Attempt{
			IP:     ip,
			User:   sampleUsers[rng.Intn(len(sampleUsers))],
			Status: sampleStatuses[rng.Intn(len(sampleStatuses))],
		}
	}
	return attempts
}
