package reporter

import (
	"github.com/setevik/communicatord/internal/flags"
)

// TestFlag builds a synthetic high-priority flag for verifying ntfy
// connectivity. It is never saved to the flags directory.
func TestFlag() *flags.Flag {
	f, _ := flags.New("communicatord", "reporter", "test-notification")
	f.SetMessage("This is a test notification to verify ntfy connectivity.\n" +
		"If you see this, the communicator daemon reporter is configured correctly.")
	f.SetPriority(95)
	f.SetSourceFile("internal/reporter/test.go")
	f.SetFunction("TestFlag")
	f.AddTag("test")
	return f
}
