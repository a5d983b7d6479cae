package common

const (
	// message statuses:
	PendingStatus    = 0
	ProcessingStatus = 1

	// reasons to move a message to the DLQ:
	MaxAttemptsReachedFailureReason = "max_attempts_reached"
	NoHandlerFailureReason          = "no handler registered for kind"

	// storage backends:
	MemoryStorage = "memory"
	SqliteStorage = "sqlite"

	// OS:
	WindowsOS = "windows"
	LinuxOS   = "linux"
	MacOS     = "darwin"
)

var (
	SupportedStorages = map[string]bool{
		MemoryStorage: true,
		SqliteStorage: true,
	}
)
