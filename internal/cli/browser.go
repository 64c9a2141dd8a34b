package cli

import (
	"errors"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// openURL opens url in the default browser. The browser's own chatter goes to stderr so
// stdout stays machine readable.
func openURL(cmd *cobra.Command, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	browser.Stdout = cmd.ErrOrStderr()
	browser.Stderr = cmd.ErrOrStderr()
	return browser.OpenURL(url)
}
