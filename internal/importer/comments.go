package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/prospect-cli/internal/address"
	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// DefaultMaxCommentColumns bounds the numbered "Comentário N" columns read per row.
const DefaultMaxCommentColumns = 10

var commentMarkers = []string{"coment", "comment"}

// CollectComments gathers the comment-like cells of a row: numbered
// "Comentário N" columns up to maxNumbered, the known comment headers, then
// any other header mentioning a comment. Numbered columns past the bound are
// ignored. Texts are trimmed, repaired for
// mojibake, and kept once in first-seen order.
func CollectComments(row address.Row, maxNumbered int) []string {
	if maxNumbered <= 0 {
		maxNumbered = DefaultMaxCommentColumns
	}

	folded := make(map[string]string, len(row.Headers()))
	for _, h := range row.Headers() {
		k := textnorm.FoldKey(h)
		if _, dup := folded[k]; !dup {
			folded[k] = h
		}
	}

	c := &commentSet{row: row, used: make(map[string]bool), seen: make(map[string]bool)}

	for i := 1; i <= maxNumbered; i++ {
		for _, prefix := range []string{"comentario", "comment"} {
			if h, ok := folded[fmt.Sprintf("%s %d", prefix, i)]; ok {
				c.add(h)
			}
		}
	}
	for _, v := range address.CommentVariants {
		c.add(v)
	}
	for _, h := range row.Headers() {
		k := textnorm.FoldKey(h)
		if n, ok := numberedComment(k); ok && n > maxNumbered {
			continue
		}
		for _, m := range commentMarkers {
			if strings.Contains(k, m) {
				c.add(h)
				break
			}
		}
	}
	return c.texts
}

// numberedComment parses a folded "comentario N" or "comment N" header.
func numberedComment(folded string) (int, bool) {
	for _, prefix := range []string{"comentario ", "comment "} {
		rest, ok := strings.CutPrefix(folded, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		return n, err == nil
	}
	return 0, false
}

type commentSet struct {
	row   address.Row
	used  map[string]bool
	seen  map[string]bool
	texts []string
}

func (c *commentSet) add(header string) {
	if c.used[header] {
		return
	}
	v, ok := c.row.Get(header)
	if !ok {
		return
	}
	c.used[header] = true
	text := strings.Join(strings.Fields(textnorm.FixMojibake(v)), " ")
	if text == "" || c.seen[text] {
		return
	}
	c.seen[text] = true
	c.texts = append(c.texts, text)
}
