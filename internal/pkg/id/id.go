package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. Session and pending ids ride in cookies
// and cache keys, listing and review ids in table keys; the time-ordered
// prefix keeps all of them sortable by creation.
func New() string {
	return ulid.Make().String()
}
