// Package monitoring forwards unexpected failures to Rollbar.
package monitoring

import (
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Reporter sends errors and recovered panics to Rollbar when a token is configured.
// A zero-token Reporter only logs.
type Reporter struct {
	enabled bool
}

// Person identifies the authenticated caller attached to a report
type Person struct {
	ID    string
	Name  string
	Email string
}

// NewReporter configures the global rollbar client
func NewReporter(token, environment, version string) *Reporter {
	if token == "" {
		rollbar.SetEnabled(false)
		return &Reporter{}
	}
	host, _ := os.Hostname()
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(version)
	rollbar.SetEnabled(true)
	log.Printf("✅ Rollbar error reporting enabled (%s)", environment)
	return &Reporter{enabled: true}
}

// Enabled reports whether errors leave the process
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Error reports err with optional context fields
func (r *Reporter) Error(err error, person *Person, extras map[string]interface{}) {
	if !r.Enabled() || err == nil {
		return
	}
	r.setPerson(person)
	if extras != nil {
		rollbar.Error(err, extras)
		return
	}
	rollbar.Error(err)
}

// Critical reports a recovered panic
func (r *Reporter) Critical(recovered interface{}, person *Person, extras map[string]interface{}) {
	if !r.Enabled() || recovered == nil {
		return
	}
	r.setPerson(person)
	if extras == nil {
		extras = map[string]interface{}{}
	}
	rollbar.Critical(recovered, extras)
}

func (r *Reporter) setPerson(person *Person) {
	if person == nil || person.ID == "" {
		rollbar.ClearPerson()
		return
	}
	rollbar.SetPerson(person.ID, person.Name, person.Email)
}

// Close flushes queued reports
func (r *Reporter) Close() {
	if r.Enabled() {
		rollbar.Close()
	}
}
