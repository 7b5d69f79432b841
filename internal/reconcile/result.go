package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result summarizes one ImportBatch call.
type Result struct {
	Inserted          int           `json:"inserted"`
	Merged            int           `json:"merged"`
	Archived          int           `json:"archived"`
	CategoriesCreated []string      `json:"categoriesCreated"`
	Failures          []RecordError `json:"failures"`
}

// Processed counts the records that were applied.
func (r Result) Processed() int {
	return r.Inserted + r.Merged + r.Archived
}

// Err joins the per-record failures, nil when there are none.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// RecordError is a failure confined to one incoming record.
type RecordError struct {
	Index int
	Title string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d (%q): %v", e.Index, e.Title, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

func (e RecordError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Index int    `json:"index"`
		Title string `json:"title"`
		Error string `json:"error"`
	}{e.Index, e.Title, msg})
}
