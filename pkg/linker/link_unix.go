//go:build !windows

package linker

import "os"

func makeLink(central, target string) error {
	return os.Symlink(central, target)
}
