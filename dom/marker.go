package dom

import "golang.org/x/net/html"

// Attributes stamped on nodes the transformation engine has rewritten.
// They live here because every layer reads them: the classifier to skip
// rewritten nodes, the watcher to ignore self-inflicted mutations, the
// engine to mark and unmark.
const (
	// MarkerAttr flags a node whose text was rewritten this session.
	MarkerAttr = "data-rebrand"

	// HighlightAttr flags a node carrying the transient post-rewrite
	// highlight. It self-clears about a second after the rewrite.
	HighlightAttr = "data-rebrand-highlight"
)

// Marked reports whether n carries the rewrite marker.
func Marked(n *html.Node) bool { return HasAttr(n, MarkerAttr) }

// SubtreeMarked reports whether any node under root (inclusive) carries the
// rewrite marker.
func SubtreeMarked(root *html.Node) bool {
	found := false
	Walk(root, func(n *html.Node) bool {
		if found {
			return false
		}
		if n.Type == html.ElementNode && HasAttr(n, MarkerAttr) {
			found = true
			return false
		}
		return true
	})
	return found
}
