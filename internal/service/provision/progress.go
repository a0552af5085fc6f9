package provision

// Progress receives download progress.
type Progress interface {
	// Start is called once the total size is known.
	Start(title string, total int64)
	// Add reports n more bytes written.
	Add(n int)
	// Stop is called when the transfer ends, successfully or not.
	Stop()
}

// noProgress discards progress updates.
type noProgress struct{}

func (noProgress) Start(string, int64) {}

func (noProgress) Add(int) {}

func (noProgress) Stop() {}
