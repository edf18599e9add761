package forge

const (
	StatusError   = "error"
	StatusSuccess = "success"
	StatusInfo    = "info"
)

// Log is one structured entry in a session's action log.
type Log struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

// Logs collects log entries produced while running one action. A failed
// action contributes log entries instead of propagating an error to the
// session-advance loop.
type Logs struct {
	entries []Log
}

func (l *Logs) Add(entry Log) {
	l.entries = append(l.entries, entry)
}

func (l *Logs) Error(description string, details ...string) {
	entry := Log{Status: StatusError, Description: description}
	if len(details) > 0 {
		entry.Details = details[0]
	}
	l.entries = append(l.entries, entry)
}

func (l *Logs) Entries() []Log {
	return l.entries
}
