package ir

// Transfer is a handle on a background content upload.
type Transfer interface {
	// Description is a human-readable summary of the transfer.
	Description() string
	// Progress is the percentage of bytes transferred, 0 to 100.
	Progress() float64
	// Done is closed when the transfer has finished, successfully or not.
	Done() <-chan struct{}
	// Err is the terminal error. Only meaningful after Done is closed.
	Err() error
}
