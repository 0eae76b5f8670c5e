//go:build !unix && !windows

package storage

// lockFile is a no-op where the platform has no advisory file locks;
// FileStore is then safe only within one process.
func lockFile(string, bool) (func(), error) {
	return func() {}, nil
}
