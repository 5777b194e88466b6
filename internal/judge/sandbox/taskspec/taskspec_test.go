package taskspec_test

import (
	"strings"
	"testing"

	"dsajudge/internal/judge/sandbox/taskspec"
)

const validReport = `{
	"exit_code": 0,
	"stdout": "Hello\n",
	"stderr": "",
	"timeMS": 42,
	"memoryKB": 1024,
	"TLE": false,
	"MLE": false,
	"OLE": false
}`

func TestDecodeReport(t *testing.T) {
	report, err := taskspec.DecodeReport([]byte(validReport))
	if err != nil {
		t.Fatalf("decode valid report: %v", err)
	}
	if report.ExitCode != 0 || report.Stdout != "Hello\n" || report.TimeMS != 42 || report.MemoryKB != 1024 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TLE || report.MLE || report.OLE {
		t.Fatalf("expected all flags false: %+v", report)
	}
}

func TestDecodeReportRejectsUnknownField(t *testing.T) {
	bad := strings.Replace(validReport, `"OLE": false`, `"OLE": false, "extra": 1`, 1)
	if _, err := taskspec.DecodeReport([]byte(bad)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeReportRejectsMissingField(t *testing.T) {
	bad := strings.Replace(validReport, `"memoryKB": 1024,`, "", 1)
	if _, err := taskspec.DecodeReport([]byte(bad)); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestDecodeReportRejectsTrailingGarbage(t *testing.T) {
	if _, err := taskspec.DecodeReport([]byte(validReport + "{}")); err == nil {
		t.Fatal("expected error for trailing document")
	}
	if _, err := taskspec.DecodeReport([]byte(validReport + "\n")); err != nil {
		t.Fatalf("trailing whitespace must be accepted: %v", err)
	}
}

func TestDecodeReportRejectsNonJSON(t *testing.T) {
	if _, err := taskspec.DecodeReport([]byte("segfault at 0x0")); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}

func TestTaskRoundTrip(t *testing.T) {
	task := taskspec.Task{
		Command:       "./main < /dev/null",
		Stdin:         "1 2 3\n",
		TimeoutMS:     1000,
		MemoryLimitMB: 256,
		UID:           1000,
		GID:           1000,
	}
	data, err := taskspec.EncodeTask(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := taskspec.DecodeTask(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != task {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, task)
	}
}

func TestDecodeTaskRejectsMissingField(t *testing.T) {
	if _, err := taskspec.DecodeTask([]byte(`{"command":"ls","stdin":"","timeoutMS":1000,"memoryLimitMB":256,"uid":1000}`)); err == nil {
		t.Fatal("expected error for missing gid")
	}
}
