package types

// CommentTree provides traversal helpers over a normalized comment tree.
// Convert any []*CommentNode (such as Thread.Comments) to use them.
type CommentTree []*CommentNode

// Walk applies fn to every comment in the tree, depth-first in listing order.
func (t CommentTree) Walk(fn func(*Comment)) {
	walkNodes(t, fn)
}

func walkNodes(nodes []*CommentNode, fn func(*Comment)) {
	for _, node := range nodes {
		if node == nil || node.Comment == nil {
			continue
		}
		fn(node.Comment)
		if len(node.Comment.Replies) > 0 {
			walkNodes(node.Comment.Replies, fn)
		}
	}
}

// Flatten returns all comments in the tree as a flat slice, depth-first.
func (t CommentTree) Flatten() []*Comment {
	var result []*Comment
	t.Walk(func(c *Comment) {
		result = append(result, c)
	})
	return result
}

// Filter returns all comments that match the given condition.
func (t CommentTree) Filter(condition func(*Comment) bool) []*Comment {
	var result []*Comment
	t.Walk(func(c *Comment) {
		if condition(c) {
			result = append(result, c)
		}
	})
	return result
}

// Find returns the first comment that matches the given condition, or nil.
func (t CommentTree) Find(condition func(*Comment) bool) *Comment {
	var found *Comment
	t.Walk(func(c *Comment) {
		if found == nil && condition(c) {
			found = c
		}
	})
	return found
}

// GetByID returns the comment with the given ID, or nil.
func (t CommentTree) GetByID(id string) *Comment {
	return t.Find(func(c *Comment) bool {
		return c.ID == id
	})
}

// GetByAuthor returns all comments written by the given author.
func (t CommentTree) GetByAuthor(author string) []*Comment {
	return t.Filter(func(c *Comment) bool {
		return c.Author == author
	})
}

// Count returns the number of comments present in the tree. Placeholder
// nodes do not count.
func (t CommentTree) Count() int {
	n := 0
	t.Walk(func(*Comment) {
		n++
	})
	return n
}

// HiddenCount sums the descendant counts advertised by "more" placeholders
// anywhere in the tree.
func (t CommentTree) HiddenCount() int {
	return hiddenCount(t)
}

func hiddenCount(nodes []*CommentNode) int {
	n := 0
	for _, node := range nodes {
		switch {
		case node == nil:
		case node.More != nil:
			n += node.More.Count
		case node.Comment != nil:
			n += hiddenCount(node.Comment.Replies)
		}
	}
	return n
}

// MaxDepth returns the deepest nesting level of the tree. Top-level comments
// are at depth 1; an empty tree has depth 0.
func (t CommentTree) MaxDepth() int {
	return maxDepth(t, 0)
}

func maxDepth(nodes []*CommentNode, depth int) int {
	deepest := depth
	for _, node := range nodes {
		if node == nil || node.Comment == nil {
			continue
		}
		d := maxDepth(node.Comment.Replies, depth+1)
		if d > deepest {
			deepest = d
		}
	}
	return deepest
}

// MoreIDs collects the comment IDs referenced by every "more" placeholder in
// the tree, in traversal order. The result can feed a MoreChildrenQuery.
func (t CommentTree) MoreIDs() []string {
	var ids []string
	collectMoreIDs(t, &ids)
	return ids
}

func collectMoreIDs(nodes []*CommentNode, ids *[]string) {
	for _, node := range nodes {
		switch {
		case node == nil:
		case node.More != nil:
			*ids = append(*ids, node.More.Children...)
		case node.Comment != nil:
			collectMoreIDs(node.Comment.Replies, ids)
		}
	}
}
