package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Path addresses one attribute of the latest-active document of a type
// within a project, e.g. document.BuildingPermit.status.
type Path struct {
	DocType   string
	Attribute string
}

func (p Path) String() string {
	return fmt.Sprintf("document.%s.%s", p.DocType, p.Attribute)
}

// Expr is a parsed validation predicate. Evaluation runs against the
// snapshot loaded at the start of a cascade iteration, never against live
// state.
type Expr interface {
	Eval(snap *Snapshot) bool
	collectRefs(refs map[string]bool)
}

// Comparison is path <op> literal with op "=" or "!=". Comparison against a
// document type with no active document evaluates the attribute as empty.
type Comparison struct {
	Path    Path
	Negated bool
	Literal string
}

func (c *Comparison) Eval(snap *Snapshot) bool {
	got := snap.Attribute(c.Path)
	if c.Negated {
		return !strings.EqualFold(got, c.Literal)
	}
	return strings.EqualFold(got, c.Literal)
}

func (c *Comparison) collectRefs(refs map[string]bool) { refs[c.Path.DocType] = true }

// InSet is path in (lit, lit, ...).
type InSet struct {
	Path   Path
	Values []string
}

func (i *InSet) Eval(snap *Snapshot) bool {
	got := snap.Attribute(i.Path)
	for _, v := range i.Values {
		if strings.EqualFold(got, v) {
			return true
		}
	}
	return false
}

func (i *InSet) collectRefs(refs map[string]bool) { refs[i.Path.DocType] = true }

// Exists is path exists: true when the attribute is present and non-empty
// on the type's active document.
type Exists struct {
	Path Path
}

func (e *Exists) Eval(snap *Snapshot) bool {
	return snap.Attribute(e.Path) != ""
}

func (e *Exists) collectRefs(refs map[string]bool) { refs[e.Path.DocType] = true }

type And struct {
	Left, Right Expr
}

func (a *And) Eval(snap *Snapshot) bool {
	return a.Left.Eval(snap) && a.Right.Eval(snap)
}

func (a *And) collectRefs(refs map[string]bool) {
	a.Left.collectRefs(refs)
	a.Right.collectRefs(refs)
}

type Or struct {
	Left, Right Expr
}

func (o *Or) Eval(snap *Snapshot) bool {
	return o.Left.Eval(snap) || o.Right.Eval(snap)
}

func (o *Or) collectRefs(refs map[string]bool) {
	o.Left.collectRefs(refs)
	o.Right.collectRefs(refs)
}

// References returns the document types an expression reads, sorted.
func References(e Expr) []string {
	refs := map[string]bool{}
	e.collectRefs(refs)
	out := make([]string, 0, len(refs))
	for r := range refs {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
