package jade

import "log/slog"

// stackBlocks merges every named block into the first block of the same
// name. Contributors are detached and marked ignored.
func (c *Compiler) stackBlocks(root Node) {
	masters := map[string]*BlockNode{}
	for _, b := range FindAll[*BlockNode](root) {
		if b.Name == "" || b.Ignored {
			continue
		}
		master, ok := masters[b.Name]
		if !ok {
			masters[b.Name] = b
			continue
		}
		mergeBlock(master, b)
		Detach(b)
		b.Ignored = true
		slog.Debug("merged block", "name", b.Name, "mode", b.Mode)
	}
}

func mergeBlock(master, b *BlockNode) {
	children := DetachChildren(b)
	switch b.Mode {
	case BlockAppend:
		for _, n := range children {
			AppendChild(master, n)
		}
	case BlockPrepend:
		var first Node
		if existing := master.Children(); len(existing) > 0 {
			first = existing[0]
		}
		for _, n := range children {
			InsertBefore(master, first, n)
		}
	default:
		DetachChildren(master)
		for _, n := range children {
			AppendChild(master, n)
		}
	}
}
