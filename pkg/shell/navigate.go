package shell

import (
	"strings"

	"github.com/donn/cvc/pkg/elaborate"
)

// findHierarchy resolves a delimiter-joined path against from, following
// ".." to the parent and matching each remaining segment against a
// child instance name. Grounded on FindHierarchy
// (_examples/original_source/src/CCvcDb_interactive.cc lines 196-247):
// a leading delimiter resets to the top instance; an unresolved
// trailing segment is reported as a partial match (the suffix may name
// a flattened net or device rather than an instance) instead of an
// outright failure, per spec.md §4.7.
func (sh *Shell) findHierarchy(from elaborate.InstanceID, hierarchy string) (elaborate.InstanceID, string, bool) {
	delim := sh.opts.HierarchyDelimiter
	if strings.HasPrefix(hierarchy, delim) {
		from = 0
		hierarchy = strings.TrimPrefix(hierarchy, delim)
	}
	if hierarchy == "" {
		return from, "", true
	}
	cur := from
	segments := strings.Split(hierarchy, delim)
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if seg == ".." {
			if sh.DB.Instances[cur].ParentID >= 0 {
				cur = sh.DB.Instances[cur].ParentID
			}
			continue
		}
		child, ok := sh.childByName(cur, seg)
		if !ok {
			// Unresolved: treat the remainder as a possible net/device
			// suffix rather than failing outright.
			remainder := strings.Join(segments[i:], delim)
			return cur, remainder, sh.looksLikeLocalName(cur, remainder)
		}
		cur = child
	}
	return cur, "", true
}

func (sh *Shell) childByName(parent elaborate.InstanceID, name string) (elaborate.InstanceID, bool) {
	for _, c := range sh.childrenOf(parent) {
		if sh.DB.Instances[c].Name == name {
			return c, true
		}
	}
	return 0, false
}

// looksLikeLocalName reports whether suffix names a net or device local
// to parent's master circuit — the "flattened net/device name" partial-
// match fallback spec.md §4.7 describes.
func (sh *Shell) looksLikeLocalName(parent elaborate.InstanceID, suffix string) bool {
	master := sh.DB.Instances[parent].Master
	for _, n := range master.NetNames {
		if n == suffix {
			return true
		}
	}
	for _, d := range master.Devices {
		if d.Name == suffix {
			return true
		}
	}
	return false
}

func (sh *Shell) cmdGoto(args []string) {
	hierarchy := sh.opts.HierarchyDelimiter // bare goto returns to top
	if len(args) > 0 {
		hierarchy = args[0]
	}
	next, unmatched, ok := sh.findHierarchy(sh.current, hierarchy)
	if !ok {
		sh.report("Could not find instance %s\n", hierarchy)
		return
	}
	sh.current = next
	if unmatched != "" {
		sh.report("matched to %s, remainder %q names a net/device, not a subcircuit\n", sh.DB.InstancePath(next, sh.opts.HierarchyDelimiter), unmatched)
	}
}

func (sh *Shell) cmdCurrentHierarchy() {
	sh.report("Current hierarchy(%d): %s\n", sh.current, sh.hierarchyName(sh.current))
}

func (sh *Shell) cmdPrintHierarchy(args []string) {
	id, ok := sh.parseInstanceID(args)
	if !ok {
		sh.report("ERROR: missing hierarchy number\n")
		return
	}
	sh.report("Current hierarchy(%d): %s\n", id, sh.hierarchyName(id))
}

func (sh *Shell) hierarchyName(id elaborate.InstanceID) string {
	path := sh.DB.InstancePath(id, sh.opts.HierarchyDelimiter)
	if sh.printSubcircuitName {
		return path + "(" + sh.DB.Instances[id].Master.Name + ")"
	}
	return path
}

func (sh *Shell) parseInstanceID(args []string) (elaborate.InstanceID, bool) {
	if len(args) == 0 {
		return 0, false
	}
	var n int
	if _, err := parseInt(args[0], &n); err != nil {
		return 0, false
	}
	return elaborate.InstanceID(n), true
}
