// Package action defines automated reply rules: reactive bindings from
// an exact inbound-message match to an outbound action.
package action

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/klchiu/waops/wa"
)

// Kind is the closed set of rule action kinds.
type Kind string

const (
	KindReply      Kind = "reply"
	KindRunCommand Kind = "runCommand"
)

// Source identifies the sender or chat an inbound message must
// originate from for the rule to match.
type Source struct {
	Type wa.ChatType `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"displayName,omitempty"`
}

// Rule binds an exact inbound-message text to an outbound action.
type Rule struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Enabled          bool     `json:"enabled"`
	TriggerPattern   string   `json:"triggerPattern"`
	Source           Source   `json:"source"`
	Kind             Kind     `json:"actionType"`
	ReplyMessage     string   `json:"replyMessage,omitempty"`
	Command          string   `json:"command,omitempty"`
	ResponseTemplate string   `json:"responseTemplate,omitempty"`
	OutputFilters    []string `json:"outputFilters,omitempty"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	c := r
	c.OutputFilters = append([]string(nil), r.OutputFilters...)
	return c
}

// Validate returns a list of human-readable reasons the rule cannot be
// saved, empty when valid.
func (r Rule) Validate() []string {
	var reasons []string

	if strings.TrimSpace(r.Title) == "" {
		reasons = append(reasons, "title is required")
	}
	if strings.TrimSpace(r.TriggerPattern) == "" {
		reasons = append(reasons, "trigger pattern is required")
	}

	switch r.Source.Type {
	case wa.ChatUser, wa.ChatGroup:
	default:
		reasons = append(reasons, fmt.Sprintf("unknown source type %q", string(r.Source.Type)))
	}
	if strings.TrimSpace(r.Source.ID) == "" {
		reasons = append(reasons, "source id is required")
	}

	switch r.Kind {
	case KindReply:
	case KindRunCommand:
		if strings.TrimSpace(r.Command) == "" {
			reasons = append(reasons, "command is required for command rules")
		}
	default:
		reasons = append(reasons, fmt.Sprintf("unknown action type %q", string(r.Kind)))
	}

	for _, f := range r.OutputFilters {
		if len(f) >= 2 && strings.HasPrefix(f, "/") && strings.HasSuffix(f, "/") {
			if _, err := regexp.Compile(f[1 : len(f)-1]); err != nil {
				reasons = append(reasons, fmt.Sprintf("output filter %q is not a valid regular expression", f))
			}
		}
	}

	return reasons
}
