package rewrite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/veldt-dev/veldt/pkg/routing"
)

// SSROutput is what the external SSR callback produced for one request:
// the rendered markup and the head-tag fragments it recorded, in order.
type SSROutput struct {
	Markup        string
	HeadFragments []string
}

// Input bundles everything one render needs. SSR is nil on the static
// fallback path; marker elements then vanish with no replacement
// content.
type Input struct {
	SSR      *SSROutput
	Data     json.RawMessage       // loader data payload, nil if absent
	CacheTTL int                   // seconds; 0 = no TTL declared
	File     string                // matched route module id, "" if none
	Routes   []routing.ClientRoute // client-safe route table
	Dev      bool                  // development mode
}

// State is the request-scoped mutable state threaded through handler
// invocations. The single-fire flags live here, not in captured
// closures, so each contract is visible and testable in isolation.
type State struct {
	In *Input

	// FallbackInserted records that the no-module fallback script has
	// been emitted after the first module-type script of this render.
	FallbackInserted bool

	// ChromeHandled records that the once-per-document head/body
	// insertions have run.
	ChromeHandled bool
}

// Token is a start tag handed to a handler. Attribute mutations are
// tracked; an unmodified token is re-emitted byte-for-byte.
type Token struct {
	Name        string
	SelfClosing bool

	attrs    []html.Attribute
	raw      []byte
	modified bool
}

// Attr returns the value of the named attribute, or "".
func (t *Token) Attr(name string) string {
	for _, a := range t.attrs {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// SetAttr replaces (or appends) an attribute, marking the token
// modified.
func (t *Token) SetAttr(name, val string) {
	for i, a := range t.attrs {
		if a.Key == name {
			t.attrs[i].Val = val
			t.modified = true
			return
		}
	}
	t.attrs = append(t.attrs, html.Attribute{Key: name, Val: val})
	t.modified = true
}

// writeTo emits the token: raw bytes when untouched, a re-serialized
// tag otherwise.
func (t *Token) writeTo(buf *bytes.Buffer) {
	if !t.modified {
		buf.Write(t.raw)
		return
	}
	buf.WriteByte('<')
	buf.WriteString(t.Name)
	for _, a := range t.attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		buf.WriteString(html.EscapeString(a.Val))
		buf.WriteByte('"')
	}
	if t.SelfClosing {
		buf.WriteByte('/')
	}
	buf.WriteByte('>')
}

// Edit is a handler's verdict on one token: bytes to splice in around
// the element, and whether to drop it entirely (start tag, content, and
// end tag).
type Edit struct {
	// Before is emitted ahead of the start tag.
	Before []byte

	// Append is emitted inside the element, just ahead of its end tag.
	// Ignored for dropped, void, and self-closing elements, which have
	// no interior to append to.
	Append []byte

	// After is emitted following the element. For container elements
	// this means after the end tag, so raw-text elements like script
	// never swallow the splice as text content.
	After []byte

	Drop bool
}

// pendingEdit holds splices waiting for a container element's end tag.
type pendingEdit struct {
	appendBytes []byte
	afterBytes  []byte
}

// HandlerFunc reacts to a start tag matching its selector.
type HandlerFunc func(tok *Token, st *State) Edit

// Rewriter streams a base HTML document through a table of selector-
// keyed handlers, emitting a rewritten byte stream. Dispatch is
// data-driven: the selector is the tag name, the table is explicit, and
// handlers can be exercised without the streaming engine.
//
// A Rewriter carries per-render state and must not be reused across
// requests.
type Rewriter struct {
	handlers map[string]HandlerFunc
	state    *State
}

// New creates a Rewriter for one render with the default handler table
// (markers, link, script, head, body).
func New(in *Input) *Rewriter {
	rw := &Rewriter{
		handlers: make(map[string]HandlerFunc),
		state:    &State{In: in},
	}
	rw.Handle(MarkerHead, headMarkerHandler)
	rw.Handle(MarkerOutlet, outletMarkerHandler)
	rw.Handle("link", linkHandler)
	rw.Handle("script", scriptHandler)
	rw.Handle("head", chromeHandler)
	rw.Handle("body", chromeHandler)
	return rw
}

// Handle registers (or replaces) the handler for a tag-name selector.
func (rw *Rewriter) Handle(selector string, h HandlerFunc) {
	rw.handlers[strings.ToLower(selector)] = h
}

// Rewrite consumes the whole base document from src and writes the
// rewritten document to dst. The output is buffered as an ordered
// sequence of chunks and written only once the end of the document has
// been reached, so chunk order exactly mirrors the rewritten document.
func (rw *Rewriter) Rewrite(src io.Reader, dst io.Writer) error {
	var out bytes.Buffer
	z := html.NewTokenizer(src)

	// Non-empty while dropping a marker element: the end tag name that
	// resumes emission.
	skipUntil := ""

	// Append/After splices waiting for their element's end tag, keyed
	// by tag name. Same-named elements do not nest in the documents we
	// rewrite, but a LIFO keeps nesting correct anyway.
	pending := make(map[string][]pendingEdit)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return fmt.Errorf("rewrite: tokenize: %w", err)
			}
			_, err := dst.Write(out.Bytes())
			return err

		case html.StartTagToken, html.SelfClosingTagToken:
			if skipUntil != "" {
				continue
			}
			name, _ := z.TagName()
			handler, ok := rw.handlers[string(name)]
			if !ok {
				out.Write(z.Raw())
				continue
			}

			tok := &Token{
				Name:        string(name),
				SelfClosing: tt == html.SelfClosingTagToken,
				raw:         append([]byte(nil), z.Raw()...),
			}
			for {
				key, val, more := z.TagAttr()
				if key == nil {
					break
				}
				tok.attrs = append(tok.attrs, html.Attribute{Key: string(key), Val: string(val)})
				if !more {
					break
				}
			}

			edit := handler(tok, rw.state)
			out.Write(edit.Before)
			switch {
			case edit.Drop:
				if !tok.SelfClosing && !voidElement(tok.Name) {
					skipUntil = tok.Name
				}
				out.Write(edit.After)
			case tok.SelfClosing || voidElement(tok.Name):
				tok.writeTo(&out)
				out.Write(edit.After)
			default:
				tok.writeTo(&out)
				if len(edit.Append) > 0 || len(edit.After) > 0 {
					pending[tok.Name] = append(pending[tok.Name], pendingEdit{
						appendBytes: edit.Append,
						afterBytes:  edit.After,
					})
				}
			}

		case html.EndTagToken:
			rawName, _ := z.TagName()
			name := string(rawName)
			if skipUntil != "" {
				if name == skipUntil {
					skipUntil = ""
				}
				continue
			}
			if q := pending[name]; len(q) > 0 {
				pe := q[len(q)-1]
				pending[name] = q[:len(q)-1]
				out.Write(pe.appendBytes)
				out.Write(z.Raw())
				out.Write(pe.afterBytes)
				continue
			}
			out.Write(z.Raw())

		default:
			if skipUntil != "" {
				continue
			}
			out.Write(z.Raw())
		}
	}
}

// RewriteBytes is Rewrite over in-memory input.
func (rw *Rewriter) RewriteBytes(doc []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := rw.Rewrite(bytes.NewReader(doc), &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// State exposes the per-render state, mainly for tests.
func (rw *Rewriter) State() *State {
	return rw.state
}

// voidElement reports whether the named element never has an end tag.
func voidElement(name string) bool {
	switch name {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "source", "track", "wbr":
		return true
	}
	return false
}
