package tui

import (
	"log"
	"os/exec"
	"runtime"

	"github.com/jamflo/jamflo/internal/safego"
)

// OpenURL hands a URL to the platform's default opener. Best-effort: a
// missing opener just logs.
func OpenURL(logger *log.Logger, url string) {
	if url == "" {
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	safego.Go(logger, func() {
		if err := cmd.Run(); err != nil {
			logger.Printf("opener: failed to open %s: %v", url, err)
		}
	})
}
