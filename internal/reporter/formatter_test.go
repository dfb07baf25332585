package reporter

import (
	"strings"
	"testing"

	"github.com/setevik/communicatord/internal/flags"
)

func TestFormatTableEmpty(t *testing.T) {
	if got := FormatTable(nil); got != "No flags raised.\n" {
		t.Errorf("FormatTable(nil) = %q", got)
	}
}

func TestFormatTable(t *testing.T) {
	first := makeFlag(t, 42)
	second, err := flags.New("mail", "postfix", "not-running")
	if err != nil {
		t.Fatal(err)
	}
	second.SetMessage("postfix is down\nsecond line is hidden").SetPriority(80)
	second.AddTag("mail")

	out := FormatTable([]*flags.Flag{first, second})

	if !strings.Contains(out, "PRI") || !strings.Contains(out, "MESSAGE") {
		t.Errorf("output missing header:\n%s", out)
	}
	if !strings.Contains(out, "core-plugins/attachment/clamav-missing") {
		t.Errorf("output missing first flag id:\n%s", out)
	}
	if !strings.Contains(out, "mail/postfix/not-running") {
		t.Errorf("output missing second flag id:\n%s", out)
	}
	if !strings.Contains(out, "postfix is down") {
		t.Errorf("output missing message:\n%s", out)
	}
	if strings.Contains(out, "second line is hidden") {
		t.Errorf("only the first message line should be shown:\n%s", out)
	}
	if !strings.Contains(out, "tags: mail") {
		t.Errorf("output missing tags line:\n%s", out)
	}
	if !strings.Contains(out, "Total: 2 flag(s)") {
		t.Errorf("output missing total:\n%s", out)
	}
}

func TestFormatTableAge(t *testing.T) {
	f := loadFlag(t, "unit=unit\nsection=section\nname=name\n"+
		"message=broken\ndate=0\n")

	out := FormatTable([]*flags.Flag{f})
	if !strings.Contains(out, "-") {
		t.Errorf("unset date should render as a dash:\n%s", out)
	}
}
