package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// XPath builds an absolute, position-indexed XPath for an element, e.g.
// /html/body/div[2]/p[1]. The same expression resolves the matching node on
// the live page, which is how mirror mutations are replayed there.
func XPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var segs []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == cur.Data {
				idx++
			}
		}
		segs = append(segs, fmt.Sprintf("%s[%d]", strings.ToLower(cur.Data), idx))
	}
	// Reverse into root-first order.
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return "/" + strings.Join(segs, "/")
}

// ResolveXPath walks a position-indexed XPath produced by XPath back to the
// node in this document, or nil when the path no longer resolves.
func (d *Document) ResolveXPath(path string) *html.Node {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	cur := d.root
	for _, seg := range strings.Split(path, "/") {
		name, idx := splitSegment(seg)
		if name == "" {
			return nil
		}
		found := false
		count := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || !strings.EqualFold(c.Data, name) {
				continue
			}
			count++
			if count == idx {
				cur = c
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return cur
}

func splitSegment(seg string) (name string, idx int) {
	idx = 1
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, idx
	}
	close := strings.IndexByte(seg, ']')
	if close <= open {
		return "", 0
	}
	n, err := strconv.Atoi(seg[open+1 : close])
	if err != nil || n < 1 {
		return "", 0
	}
	return seg[:open], n
}
