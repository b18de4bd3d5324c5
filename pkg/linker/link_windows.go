//go:build windows

package linker

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// makeLink creates a symlink when the process has the privilege, otherwise
// falls back to an NTFS junction, which needs no elevation for directories.
func makeLink(central, target string) error {
	if err := os.Symlink(central, target); err == nil {
		return nil
	}

	out, err := exec.Command("cmd", "/c", "mklink", "/J", target, central).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "mklink /J failed: %s", string(out))
	}
	return nil
}
