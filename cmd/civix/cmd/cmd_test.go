package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bison808/civix"
)

// execute runs the root command in-process from an empty directory, so the
// embedded data files are used.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestResolveCommandJSON(t *testing.T) {
	stdout, _, err := execute(t, "resolve", "--offline", "-o", "json", "94102")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var results []civix.Resolution
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.ZIP != "94102" || res.County != "San Francisco" || res.Districts.Congressional != 11 {
		t.Errorf("resolve 94102 = %+v", res)
	}
	if res.Source != civix.SourceTable {
		t.Errorf("Source = %s, want table", res.Source)
	}
}

func TestResolveCommandReportsFailures(t *testing.T) {
	stdout, stderr, err := execute(t, "resolve", "--offline", "-o", "table", "94102", "10001")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 ZIPs") {
		t.Errorf("error = %v, want a count of unresolved ZIPs", err)
	}
	if !strings.Contains(stderr, "10001:") {
		t.Errorf("stderr = %q, want the failed ZIP", stderr)
	}
	if !strings.Contains(stdout, "94102") || !strings.Contains(stdout, "San Francisco") {
		t.Errorf("table output missing the resolved ZIP:\n%s", stdout)
	}
}

func TestOfficialsCommand(t *testing.T) {
	stdout, _, err := execute(t, "officials", "--offline", "-o", "table", "94102")
	if err != nil {
		t.Fatalf("officials: %v", err)
	}
	if !strings.HasPrefix(stdout, "94102: San Francisco, San Francisco County") {
		t.Errorf("unexpected heading:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Nancy Pelosi") {
		t.Errorf("representative missing:\n%s", stdout)
	}
}

func TestDistrict(t *testing.T) {
	if got := district(0); got != "-" {
		t.Errorf("district(0) = %q", got)
	}
	if got := district(52); got != "52" {
		t.Errorf("district(52) = %q", got)
	}
}

func TestAgreement(t *testing.T) {
	findings := []civix.AuditFinding{
		{ZIP: "94102", Field: "assembly"},
		{ZIP: "94102", Field: "state_senate"},
		{ZIP: "95060", Field: "county"},
	}
	if got := agreement(findings, 10); got != 80 {
		t.Errorf("agreement() = %v, want 80", got)
	}
	if got := agreement(nil, 0); got != 0 {
		t.Errorf("agreement(nil, 0) = %v", got)
	}
}
