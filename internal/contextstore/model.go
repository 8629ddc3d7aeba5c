// Package contextstore keeps the project-local log of knowledge entries in a
// single JSON file shared by every tool working on the same workspace.
package contextstore

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a captured entry.
type Type string

const (
	TypeConversation Type = "conversation"
	TypeDecision     Type = "decision"
	TypeCode         Type = "code"
	TypeIssue        Type = "issue"
)

// Types lists every accepted entry type in display order.
var Types = []Type{TypeConversation, TypeDecision, TypeCode, TypeIssue}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeConversation, TypeDecision, TypeCode, TypeIssue:
		return true
	}
	return false
}

const (
	// DefaultImportance is applied when a caller does not supply one.
	DefaultImportance = 5
	MinImportance     = 1
	MaxImportance     = 10
)

// Context is a single captured knowledge unit.
type Context struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Content     string    `json:"content"`
	Type        Type      `json:"type"`
	Importance  int       `json:"importance"`
	Tags        []string  `json:"tags"`
	ProjectPath string    `json:"projectPath"`
}

// clone returns a copy that does not share the tags slice.
func (c Context) clone() Context {
	c.Tags = append([]string{}, c.Tags...)
	return c
}

// NewContext holds the caller-supplied fields of an entry being added.
// Importance zero means "use the default".
type NewContext struct {
	Content    string
	Type       Type
	Importance int
	Tags       []string
}

// Patch describes a partial update. A nil field is left untouched; a non-nil
// Tags pointing at an empty slice clears the tags.
type Patch struct {
	Content    *string
	Type       *Type
	Importance *int
	Tags       *[]string
}

// Empty reports whether the patch carries no field at all.
func (p Patch) Empty() bool {
	return p.Content == nil && p.Type == nil && p.Importance == nil && p.Tags == nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

func validateType(t Type) error {
	if !t.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be one of conversation, decision, code, issue; got %q", string(t))}
	}
	return nil
}

func validateImportance(i int) error {
	if i < MinImportance || i > MaxImportance {
		return &ValidationError{Field: "importance", Reason: "must be between 1 and 10"}
	}
	return nil
}

func validateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return &ValidationError{Field: "tags", Reason: "must not contain empty tags"}
		}
	}
	return nil
}

// validate checks the fields a caller can set.
func (c *Context) validate() error {
	if err := validateContent(c.Content); err != nil {
		return err
	}
	if err := validateType(c.Type); err != nil {
		return err
	}
	if err := validateImportance(c.Importance); err != nil {
		return err
	}
	return validateTags(c.Tags)
}

// apply copies the supplied patch fields onto c.
func (p Patch) apply(c *Context) {
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Importance != nil {
		c.Importance = *p.Importance
	}
	if p.Tags != nil {
		c.Tags = append([]string{}, (*p.Tags)...)
	}
}

// normalize fills defaults on entries read from older files.
func (c *Context) normalize() {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Importance == 0 {
		c.Importance = DefaultImportance
	}
}
