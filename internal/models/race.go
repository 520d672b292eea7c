package models

// Race is a single scheduled event. It is created by an administrator ahead of
// time and marked done once every runner has a finishing time.
type Race struct {
	ID int64 `json:"id"`
	// Date is the scheduled start, unix milliseconds.
	Date int64 `json:"date"`
	Done bool  `json:"done"`
}
