package routing

import (
	"reflect"
	"testing"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    map[string]string
		ok      bool
	}{
		{"/", "/", map[string]string{}, true},
		{"/posts", "/posts", map[string]string{}, true},
		{"/posts", "/posts/42", nil, false},
		{"/posts/:id", "/posts/42", map[string]string{"id": "42"}, true},
		{"/posts/:id", "/posts", nil, false},
		{"/posts/:id/edit", "/posts/42/edit", map[string]string{"id": "42"}, true},
		{"/posts/:id/edit", "/posts/42/view", nil, false},
		{"/users/:user/posts/:id", "/users/ada/posts/7", map[string]string{"user": "ada", "id": "7"}, true},
		{"/files/*path", "/files/a/b/c", map[string]string{"path": "a/b/c"}, true},
		{"/files/*path", "/files", nil, false},
		{"/", "/posts", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.path, func(t *testing.T) {
			p := MustCompilePattern(tt.pattern)
			got, ok := p.Match("example.com", tt.path)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPatternHostConstraint(t *testing.T) {
	p, err := CompileHostPattern("admin.example.com", "/dash")
	if err != nil {
		t.Fatalf("CompileHostPattern: %v", err)
	}

	if _, ok := p.Match("admin.example.com", "/dash"); !ok {
		t.Error("expected match on constrained host")
	}
	if _, ok := p.Match("ADMIN.example.com:8080", "/dash"); !ok {
		t.Error("host comparison should ignore case and port")
	}
	if _, ok := p.Match("example.com", "/dash"); ok {
		t.Error("expected no match on wrong host")
	}
}

func TestCompilePatternErrors(t *testing.T) {
	for _, raw := range []string{"posts/:id", "/a//b", "/:", "/x/*", "/f/*rest/more"} {
		if _, err := CompilePattern(raw); err == nil {
			t.Errorf("CompilePattern(%q): expected error", raw)
		}
	}
}
