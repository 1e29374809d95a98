package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestTakeSnapshot(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "index.html")
	staticDir := filepath.Join(dir, "public")
	if err := os.MkdirAll(filepath.Join(staticDir, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{template, filepath.Join(staticDir, "app.js"), filepath.Join(staticDir, "css", "main.css")} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	snap := takeSnapshot(template, staticDir)
	if len(snap) != 3 {
		t.Errorf("snapshot has %d entries, want 3: %v", len(snap), snap)
	}
	if _, ok := snap[template]; !ok {
		t.Error("snapshot missing the base document")
	}
	if _, ok := snap[filepath.Join(staticDir, "css", "main.css")]; !ok {
		t.Error("snapshot missing nested static file")
	}
}

func TestDiffSnapshot(t *testing.T) {
	staticDir := filepath.FromSlash("/site/public")
	template := filepath.FromSlash("/site/index.html")
	cssFile := filepath.Join(staticDir, "css", "main.css")
	jsFile := filepath.Join(staticDir, "app.js")

	base := time.Now()
	prev := fileSnapshot{
		template: base,
		cssFile:  base,
		jsFile:   base,
	}

	clone := func() fileSnapshot {
		out := make(fileSnapshot, len(prev))
		for k, v := range prev {
			out[k] = v
		}
		return out
	}

	t.Run("no change", func(t *testing.T) {
		css, full := diffSnapshot(prev, clone(), staticDir)
		if len(css) != 0 || full {
			t.Errorf("css = %v, full = %v, want none", css, full)
		}
	})

	t.Run("stylesheet change is targeted", func(t *testing.T) {
		cur := clone()
		cur[cssFile] = base.Add(time.Second)
		css, full := diffSnapshot(prev, cur, staticDir)
		if full {
			t.Error("stylesheet change must not force a full reload")
		}
		if want := []string{"/css/main.css"}; !reflect.DeepEqual(css, want) {
			t.Errorf("css = %v, want %v", css, want)
		}
	})

	t.Run("template change forces reload", func(t *testing.T) {
		cur := clone()
		cur[template] = base.Add(time.Second)
		if _, full := diffSnapshot(prev, cur, staticDir); !full {
			t.Error("template change must force a full reload")
		}
	})

	t.Run("script change forces reload", func(t *testing.T) {
		cur := clone()
		cur[jsFile] = base.Add(time.Second)
		if _, full := diffSnapshot(prev, cur, staticDir); !full {
			t.Error("non-stylesheet change must force a full reload")
		}
	})

	t.Run("deletion forces reload", func(t *testing.T) {
		cur := clone()
		delete(cur, jsFile)
		if _, full := diffSnapshot(prev, cur, staticDir); !full {
			t.Error("deleted file must force a full reload")
		}
	})

	t.Run("new file forces reload", func(t *testing.T) {
		cur := clone()
		cur[filepath.Join(staticDir, "new.js")] = base
		if _, full := diffSnapshot(prev, cur, staticDir); !full {
			t.Error("new file must force a full reload")
		}
	})
}
