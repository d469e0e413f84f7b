package hostcli

import "testing"

func TestDetectHostSSH(t *testing.T) {
	host, repo := DetectHost("git@github.com:orangehq/orange.git")
	if host != "github.com" || repo != "orangehq/orange" {
		t.Errorf("got (%q, %q)", host, repo)
	}
}

func TestDetectHostHTTPS(t *testing.T) {
	host, repo := DetectHost("https://gitlab.example.com/team/proj")
	if host != "gitlab.example.com" || repo != "team/proj" {
		t.Errorf("got (%q, %q)", host, repo)
	}
}

func TestDetectHostFallback(t *testing.T) {
	host, _ := DetectHost("not a url")
	if host != "github.com" {
		t.Errorf("expected fallback host github.com, got %q", host)
	}
}

func TestClassifyChecks(t *testing.T) {
	type rc = struct {
		Conclusion string `json:"conclusion"`
		Status     string `json:"status"`
	}
	if got := classifyChecks(nil); got != ChecksNone {
		t.Errorf("empty rollup: got %v", got)
	}
	if got := classifyChecks([]rc{{Status: "COMPLETED", Conclusion: "SUCCESS"}}); got != ChecksPass {
		t.Errorf("all pass: got %v", got)
	}
	if got := classifyChecks([]rc{{Status: "COMPLETED", Conclusion: "FAILURE"}}); got != ChecksFail {
		t.Errorf("one fail: got %v", got)
	}
	if got := classifyChecks([]rc{{Status: "IN_PROGRESS"}}); got != ChecksPending {
		t.Errorf("in progress: got %v", got)
	}
}

func TestFakeCreatePRThenStatus(t *testing.T) {
	f := NewFake()
	url, err := f.CreatePR("/tmp", CreatePRRequest{Head: "feature-x", Base: "main", Title: "t", Body: "b"})
	if err != nil {
		t.Fatal(err)
	}
	status, err := f.PRStatus("/tmp", "feature-x")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Exists || status.URL != url {
		t.Errorf("unexpected status: %+v", status)
	}
}
