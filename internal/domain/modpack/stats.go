package modpack

// Stats summarizes one overlay run.
type Stats struct {
	// Entries is the number of manifest entries.
	Entries int
	// Deleted counts manifest entries that existed and were removed.
	Deleted int
	// Missing counts manifest entries that did not exist.
	Missing int
	// Copied counts files copied from the working copy.
	Copied int
	// Skipped counts source files whose target already existed.
	Skipped int
}
