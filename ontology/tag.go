// Package ontology manages the concept taxonomy: persistent tag storage,
// YAML seeding, and the in-memory graph the activation engine walks.
package ontology

import (
	"time"
)

// Kind classifies an ontology tag.
type Kind string

const (
	KindTopic        Kind = "topic"
	KindSubtopic     Kind = "subtopic"
	KindSkill        Kind = "skill"
	KindOperation    Kind = "operation"
	KindPrerequisite Kind = "prerequisite"
	KindOther        Kind = "other"
)

// IsValidKind returns true if the string is a valid tag kind.
func IsValidKind(s string) bool {
	switch Kind(s) {
	case KindTopic, KindSubtopic, KindSkill, KindOperation, KindPrerequisite, KindOther:
		return true
	default:
		return false
	}
}

// Tag is a node in the concept ontology. IDs are stable string keys
// (e.g. "topic.calculus", "op.prove"), globally unique and immutable once
// seeded. The parent graph forms a forest; tags are never deleted.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	ParentID    string    `json:"parent_id,omitempty"`
	Aliases     []string  `json:"aliases,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DescriptorText returns the text embedded for this tag: name plus
// description. Aliases are embedded separately and averaged in.
func (t *Tag) DescriptorText() string {
	if t.Description == "" {
		return t.Name
	}
	return t.Name + " " + t.Description
}
