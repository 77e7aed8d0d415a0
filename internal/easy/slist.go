package easy

// Slist is an ordered, singly linked list of strings. Lists handed to a
// Handle stay owned by the caller and must outlive every Perform that
// uses them.
type Slist struct {
	Data string
	Next *Slist
}

// Append adds s to the end of the list and returns the head. A nil
// receiver starts a new list.
func (l *Slist) Append(s string) *Slist {
	item := &Slist{Data: s}
	if l == nil {
		return item
	}
	last := l
	for last.Next != nil {
		last = last.Next
	}
	last.Next = item
	return l
}

// Strings returns the list contents in order.
func (l *Slist) Strings() []string {
	var out []string
	for it := l; it != nil; it = it.Next {
		out = append(out, it.Data)
	}
	return out
}

// Len returns the number of entries.
func (l *Slist) Len() int {
	n := 0
	for it := l; it != nil; it = it.Next {
		n++
	}
	return n
}

// FreeAll unlinks every entry. Handles still pointing at the list see an
// empty head entry afterwards.
func (l *Slist) FreeAll() {
	for it := l; it != nil; {
		next := it.Next
		it.Next = nil
		it.Data = ""
		it = next
	}
}

// NewSlist builds a list from items.
func NewSlist(items ...string) *Slist {
	var l *Slist
	for _, s := range items {
		l = l.Append(s)
	}
	return l
}
