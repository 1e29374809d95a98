package rewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Marker element names in the base document template.
const (
	// MarkerHead is the head insertion point: fragments, the data
	// payload script, and the hydration bootstrap land here.
	MarkerHead = "ssr-head"

	// MarkerOutlet is the body insertion point, replaced wholesale by
	// the SSR markup.
	MarkerOutlet = "ssr-outlet"
)

// IDs of the bootstrap script elements embedded into rendered documents.
// These are part of the client contract and must stay byte-for-byte
// stable.
const (
	DataScriptID   = "veldt-data"
	RoutesScriptID = "veldt-routes"
)

// legacyFallback is inserted once per render after the first module-type
// script, for browsers that ignore type="module".
const legacyFallback = `<script nomodule src="/.veldt/legacy.js"></script>`

// headMarkerHandler expands the SSR head marker: head fragments in
// order, then the JSON data payload, then the hydration bootstrap. The
// marker itself is removed.
func headMarkerHandler(tok *Token, st *State) Edit {
	var b bytes.Buffer

	if st.In.SSR != nil {
		for _, frag := range st.In.SSR.HeadFragments {
			b.WriteString(frag)
		}
	}

	if len(st.In.Data) > 0 {
		b.WriteString(`<script type="application/json" id="` + DataScriptID + `"`)
		if st.In.CacheTTL > 0 {
			fmt.Fprintf(&b, ` data-ttl="%d"`, st.In.CacheTTL)
		}
		b.WriteString(`>`)
		b.Write(escapeJSONScript(st.In.Data))
		b.WriteString(`</script>`)
	}

	if st.In.File != "" {
		fmt.Fprintf(&b, `<script type="module">import module from %q;window.$veldt=module;</script>`,
			absoluteHref(st.In.File))
	}

	return Edit{Before: b.Bytes(), Drop: true}
}

// outletMarkerHandler replaces the body marker with the raw SSR markup.
// Without SSR output the marker simply vanishes.
func outletMarkerHandler(tok *Token, st *State) Edit {
	if st.In.SSR == nil {
		return Edit{Drop: true}
	}
	return Edit{Before: []byte(st.In.SSR.Markup), Drop: true}
}

// linkHandler rewrites relative-current-directory hrefs to absolute
// form and, in development, registers site-root stylesheets for live
// reload.
func linkHandler(tok *Token, st *State) Edit {
	href := tok.Attr("href")
	if strings.HasPrefix(href, "./") {
		href = href[1:]
		tok.SetAttr("href", href)
	}

	if st.In.Dev && tok.Attr("rel") == "stylesheet" && strings.HasPrefix(href, "/") {
		return Edit{After: []byte(reloadRegister(href))}
	}
	return Edit{}
}

// scriptHandler rewrites relative src attributes and inserts the
// legacy no-module fallback after the first module-type script of the
// render.
func scriptHandler(tok *Token, st *State) Edit {
	if src := tok.Attr("src"); strings.HasPrefix(src, "./") {
		tok.SetAttr("src", src[1:])
	}

	if tok.Attr("type") == "module" && !st.FallbackInserted {
		st.FallbackInserted = true
		return Edit{After: []byte(legacyFallback)}
	}
	return Edit{}
}

// chromeHandler fires on head and body. Whichever opens first gets the
// serialized route table and, in development, the document's live
// reload decline registration appended at the end of the element; the
// flag keeps this to once per render.
func chromeHandler(tok *Token, st *State) Edit {
	if st.ChromeHandled {
		return Edit{}
	}
	st.ChromeHandled = true

	var b bytes.Buffer
	if len(st.In.Routes) > 0 {
		table, err := json.Marshal(st.In.Routes)
		if err == nil {
			b.WriteString(`<script type="application/json" id="` + RoutesScriptID + `">`)
			b.Write(escapeJSONScript(table))
			b.WriteString(`</script>`)
		}
	}
	if st.In.Dev {
		b.WriteString(`<script>window.$veldtReload&&window.$veldtReload.decline(document);</script>`)
	}
	if b.Len() == 0 {
		return Edit{}
	}
	return Edit{Append: b.Bytes()}
}

// reloadRegister is the dev-mode script re-subscribing a stylesheet to
// change notifications.
func reloadRegister(href string) string {
	return fmt.Sprintf(`<script>window.$veldtReload&&window.$veldtReload.register(%q);</script>`, href)
}

// absoluteHref drops a leading "./", making the path site-root
// relative.
func absoluteHref(p string) string {
	if strings.HasPrefix(p, "./") {
		return p[1:]
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// escapeJSONScript makes a JSON document safe to inline in a script
// element by escaping closing-tag sequences. "<\/" is a valid JSON
// string escape, and "</" cannot occur in JSON outside strings.
func escapeJSONScript(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte(`</`), []byte(`<\/`))
}
