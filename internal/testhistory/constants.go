package testhistory

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultMaxResults   = 15
	DefaultBooksPerUser = 3
	tokenTTLMinutes     = 30
)
