// Package rewrite implements the streaming document rewriter: it feeds
// a base HTML template through element-level handlers keyed by tag-name
// selector and emits the rewritten byte stream.
//
// The rewriter performs targeted insertion and replacement without ever
// building a document tree: SSR markup into the <ssr-outlet> marker,
// head fragments and bootstrap scripts at the <ssr-head> marker, and
// asset href/src fixups on link and script tags.
package rewrite
