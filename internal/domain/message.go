package domain

import (
	"fmt"
	"strings"
)

// MessageRef addresses a posted chat message.
type MessageRef struct {
	Channel string
	TS      string
}

// IsZero reports whether the reference is empty.
func (m MessageRef) IsZero() bool {
	return m.Channel == "" || m.TS == ""
}

// MessageLink returns the permalink form https://<workspace>/archives/<channel>/p<ts without dot>.
// It is empty when either part is missing.
func MessageLink(workspaceURL string, ref MessageRef) string {
	if ref.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s/archives/%s/p%s", strings.TrimRight(workspaceURL, "/"), ref.Channel, strings.ReplaceAll(ref.TS, ".", ""))
}
