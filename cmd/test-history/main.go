// Command test-history drives a running bookrec service end to end.
package main

import (
	"os"

	"github.com/okian/bookrec/internal/testhistory"
)

func main() {
	if err := testhistory.NewCommand().Execute(); err != nil {
		os.Stderr.WriteString("test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
