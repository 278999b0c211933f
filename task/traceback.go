package task

import (
	"fmt"
	"strings"
)

// Traceback renders a multi-task stack trace: it walks the chain of
// current awaits starting at t, so an error surfaced at the top of a
// chain of nested tasks still names the frame that is actually blocked.
func (t *Task) Traceback(msg string) string {
	var b strings.Builder
	if msg != "" {
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	b.WriteString("task traceback:")
	for cur := t; cur != nil; cur = cur.awaitChild {
		name := cur.name
		if name == "" {
			name = "<unnamed>"
		}
		fmt.Fprintf(&b, "\n\t%s (%s): %s", name, cur.site, cur.state)
		if cur.state == StatusAwaiting && cur.awaitSite != "" {
			fmt.Fprintf(&b, " at %s", cur.awaitSite)
		}
		if cur.err != nil {
			fmt.Fprintf(&b, ": %v", cur.err)
		}
	}
	return b.String()
}
