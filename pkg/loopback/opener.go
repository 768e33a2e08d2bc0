package loopback

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener shows url to the user, normally in the system browser.
type Opener func(url string) error

// SystemBrowser opens url with the platform's default handler.
func SystemBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("%w: %s", ErrNoBrowser, runtime.GOOS)
	}
	return cmd.Start()
}
