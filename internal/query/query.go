package query

import (
	"encoding/json"
	"time"

	"github.com/tallybook/tallybook/internal/ledger"
)

// DefaultDeadline bounds one validated query including enrichment.
const DefaultDeadline = 5 * time.Second

// UnknownContact is the contactName used when a contactId cannot be resolved.
const UnknownContact = "Unknown"

// Result is handed to answer synthesis, so it is always well formed. Data is
// only meaningful when Success is true.
type Result struct {
	Success bool
	Data    []ledger.Record
	Error   string
}

func Succeeded(data []ledger.Record) Result {
	if data == nil {
		data = []ledger.Record{}
	}
	return Result{Success: true, Data: data}
}

func Failed(message string) Result {
	return Result{Success: false, Error: message}
}

func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Success bool             `json:"success"`
		Data    *[]ledger.Record `json:"data,omitempty"`
		Error   string           `json:"error,omitempty"`
	}
	out := wire{Success: r.Success, Error: r.Error}
	if r.Success {
		data := r.Data
		if data == nil {
			data = []ledger.Record{}
		}
		out.Data = &data
	}
	return json.Marshal(out)
}
