package db

import "fmt"

// Op names the cache command that failed.
type Op string

// Commands issued by the cache drivers.
const (
	OpGet  = Op("GET")
	OpSet  = Op("SET")
	OpPing = Op("PING")
)

// Error wraps a driver failure with the command and the number of keys it touched.
type Error struct {
	Op   Op
	Keys int
	Err  error
}

func (e *Error) Error() string {
	if e.Keys > 0 {
		return fmt.Sprintf("%s (%d keys): %v", e.Op, e.Keys, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
