package store

// Message is a unit of retryable work in the active store.
// Timestamps are unix epoch milliseconds; a message is eligible for
// processing when ProcessAfter <= now.
type Message struct {
	Id            string
	Kind          string
	Payload       []byte
	Metadata      []byte
	Status        int
	Attempts      int
	MaxAttempts   int
	ProcessAfter  int64
	ReceivedAt    int64
	UpdatedAt     int64
	FailureReason *string
}

// DeadLetter is a quarantined message that exhausted its attempts
// or had no usable handler.
type DeadLetter struct {
	Id            string
	Kind          string
	Payload       []byte
	Metadata      []byte
	Attempts      int
	MaxAttempts   int
	ReceivedAt    int64
	FailedAt      int64
	FailureReason string
}

type Stats struct {
	Pending    int
	Processing int
	DeadLetter int
	ByKind     map[string]int
}
