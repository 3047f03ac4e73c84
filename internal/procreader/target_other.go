//go:build !linux

package procreader

// openTarget has no backend on platforms other than Linux: the real
// macOS path (task_for_pid + mach_vm_read) needs cgo and root, and isn't
// wired up here. Callers get ErrUnsupportedPlatform, which carries no
// remediation hint.
func openTarget(pid int) (Target, error) {
	return nil, ErrUnsupportedPlatform
}
