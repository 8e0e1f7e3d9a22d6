//go:build !unix

package wallpaper

import "os/exec"

// detach is a no-op where sessions are not available
func detach(cmd *exec.Cmd) {}
