package relabel

import (
	"strings"
	"testing"

	"github.com/dushixiang/sidecar/internal/protocol"
)

var id = protocol.Identity{ServiceName: "api", Environment: "prod"}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"no labels", `up 1`, `up{service_name="api",environment="prod"} 1`, true},
		{"with labels", `http_requests_total{method="GET",path="/"} 42`,
			`http_requests_total{method="GET",path="/",service_name="api",environment="prod"} 42`, true},
		{"spaced labels kept verbatim", `http_requests_total{method="GET", path="/"} 42`,
			`http_requests_total{method="GET", path="/",service_name="api",environment="prod"} 42`, true},
		{"empty body", `up{} 1`, `up{service_name="api",environment="prod"} 1`, true},
		{"trailing comma", `up{job="x",} 1`, `up{job="x",service_name="api",environment="prod"} 1`, true},
		{"timestamp kept", `up{job="x"} 1 1700000000000`, `up{job="x",service_name="api",environment="prod"} 1 1700000000000`, true},
		{"brace in value", `m{path="/a}b"} 3`, `m{path="/a}b",service_name="api",environment="prod"} 3`, true},
		{"escaped quote", `m{msg="say \"hi\""} 3`, `m{msg="say \"hi\"",service_name="api",environment="prod"} 3`, true},
		{"trailing whitespace", "up 1 \t\r", `up{service_name="api",environment="prod"} 1`, true},
		{"tab separator", "up\t1", `up{service_name="api",environment="prod"} 1`, true},
		{"existing identity replaced", `up{service_name="old",job="x",environment="dev"} 1`,
			`up{job="x",service_name="api",environment="prod"} 1`, true},
		{"comment", `# HELP up whether the target is up`, "", false},
		{"type comment", `# TYPE up gauge`, "", false},
		{"blank", "   ", "", false},
		{"name only", `up`, "", false},
		{"labels without value", `up{job="x"}`, "", false},
		{"unterminated labels", `up{job="x" 1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Line(tt.in, id)
			if ok != tt.ok {
				t.Fatalf("Line(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Line(%q)\n got %s\nwant %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLineNoDuplicateLabels(t *testing.T) {
	got, ok := Line(`x{service_name="a",service_name="b"} 1`, id)
	if !ok {
		t.Fatal("应保留该行")
	}
	if n := strings.Count(got, "service_name="); n != 1 {
		t.Errorf("service_name 出现 %d 次: %s", n, got)
	}
}

func TestLineEscapesIdentity(t *testing.T) {
	got, ok := Line(`up 1`, protocol.Identity{ServiceName: `we"ird\svc`, Environment: "a\nb"})
	if !ok {
		t.Fatal("应保留该行")
	}
	want := `up{service_name="we\"ird\\svc",environment="a\nb"} 1`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestText(t *testing.T) {
	raw := strings.Join([]string{
		"# HELP http_requests_total Total requests",
		"# TYPE http_requests_total counter",
		`http_requests_total{method="GET",path="/"} 42`,
		"",
		"up 1",
		"",
	}, "\n")

	want := `http_requests_total{method="GET",path="/",service_name="api",environment="prod"} 42` + "\n" +
		`up{service_name="api",environment="prod"} 1`

	if got := Text(raw, id); got != want {
		t.Errorf("Text()\n got %q\nwant %q", got, want)
	}
}

func TestTextEmpty(t *testing.T) {
	if got := Text("", id); got != "" {
		t.Errorf("Text(\"\") = %q", got)
	}
	if got := Text("# only comments\n\n", id); got != "" {
		t.Errorf("Text(comments) = %q", got)
	}
}

func TestTextEveryLineLabelled(t *testing.T) {
	raw := "a 1\nb{x=\"1\"} 2\nc{} 3"
	for _, line := range strings.Split(Text(raw, id), "\n") {
		if !strings.Contains(line, `service_name="api"`) || !strings.Contains(line, `environment="prod"`) {
			t.Errorf("缺少身份标签: %s", line)
		}
	}
}
