package s3blob

import "testing"

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
		wantErr  bool
	}{
		{"", false, "", false},
		{"http://localhost:9000", true, "http://localhost:9000", false},
		{"localhost:9000", false, "http://localhost:9000", false},
		{"s3.example.com", true, "https://s3.example.com", false},
		{"::bad", false, "", true},
	}
	for _, tt := range tests {
		got, err := endpointURL(tt.endpoint, tt.useSSL)
		if (err != nil) != tt.wantErr {
			t.Fatalf("endpointURL(%q) err = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("endpointURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "prod"}
	if got := c.key("archive/history/2026-03-01/1.json"); got != "prod/archive/history/2026-03-01/1.json" {
		t.Fatalf("key = %q", got)
	}
	if got := c.listPrefix("archive/"); got != "prod/archive/" {
		t.Fatalf("listPrefix = %q", got)
	}
	if got := c.relative("prod/archive/history/x.json"); got != "archive/history/x.json" {
		t.Fatalf("relative = %q", got)
	}

	bare := &Client{}
	if got := bare.key("/archive/x.json"); got != "archive/x.json" {
		t.Fatalf("bare key = %q", got)
	}
	if got := bare.listPrefix("archive/"); got != "archive/" {
		t.Fatalf("bare listPrefix = %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	for p, want := range map[string]string{
		"archive/opportunities/2026-03-01/1.jsonl": contentTypeJSONL,
		"archive/history/2026-03-01/1.json":        contentTypeJSON,
		"archive/readme.txt":                       "",
	} {
		if got := contentTypeFor(p); got != want {
			t.Fatalf("contentTypeFor(%q) = %q, want %q", p, got, want)
		}
	}
}
