// Package config owns the versioned task configuration: the rule-group
// forest, global block lists, watch/activity knobs, and the migration from
// the legacy flat-rule format. The engine captures one Settings value at run
// start and never reads the store again during the run.
package config

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Version tag of the current configuration schema.
const VersionV2 = "v2"

// RuleField names the item field a manual condition tests.
type RuleField string

const (
	FieldAuthorName  RuleField = "nickName"
	FieldDescription RuleField = "videoDesc"
	FieldTag         RuleField = "videoTag"
)

// Relation combines the conditions of a manual group.
type Relation string

const (
	RelationAnd Relation = "and"
	RelationOr  Relation = "or"
)

// GroupType discriminates manual keyword groups from AI-judged groups.
type GroupType string

const (
	GroupManual GroupType = "manual"
	GroupAI     GroupType = "ai"
)

// AttachmentMode selects how a group's attachment path is interpreted.
type AttachmentMode string

const (
	AttachmentFile   AttachmentMode = "file"
	AttachmentFolder AttachmentMode = "folder"
)

// Rule is one keyword condition of a manual group.
type Rule struct {
	Field   RuleField `json:"field" yaml:"field"`
	Keyword string    `json:"keyword" yaml:"keyword"`
}

// RuleGroup is a node in the decision tree. A group with children is a
// router: it must match AND some descendant must match. A group without
// children is terminal and carries the engagement payload.
type RuleGroup struct {
	ID       string      `json:"id" yaml:"id"`
	Type     GroupType   `json:"type" yaml:"type"`
	Name     string      `json:"name" yaml:"name"`
	Relation Relation    `json:"relation,omitempty" yaml:"relation,omitempty"`
	Rules    []Rule      `json:"rules,omitempty" yaml:"rules,omitempty"`
	AIPrompt string      `json:"aiPrompt,omitempty" yaml:"aiPrompt,omitempty"`
	Children []RuleGroup `json:"children,omitempty" yaml:"children,omitempty"`

	CommentTexts     []string       `json:"commentTexts,omitempty" yaml:"commentTexts,omitempty"`
	CommentImagePath string         `json:"commentImagePath,omitempty" yaml:"commentImagePath,omitempty"`
	CommentImageType AttachmentMode `json:"commentImageType,omitempty" yaml:"commentImageType,omitempty"`
}

// Terminal reports whether the group has no children, i.e. whether its
// engagement payload is the one the composer reads.
func (g RuleGroup) Terminal() bool {
	return len(g.Children) == 0
}

// Settings is the versioned v2 configuration.
type Settings struct {
	Version             string      `json:"version" yaml:"version"`
	RuleGroups          []RuleGroup `json:"ruleGroups" yaml:"ruleGroups"`
	BlockKeywords       []string    `json:"blockKeywords" yaml:"blockKeywords"`
	AuthorBlockKeywords []string    `json:"authorBlockKeywords" yaml:"authorBlockKeywords"`
	SimulateWatch       bool        `json:"simulateWatchBeforeComment" yaml:"simulateWatchBeforeComment"`
	WatchTimeRange      [2]int      `json:"watchTimeRangeSeconds" yaml:"watchTimeRangeSeconds"`
	OnlyActive          bool        `json:"onlyCommentActiveVideo" yaml:"onlyCommentActiveVideo"`
	RandomLike          bool        `json:"randomLike,omitempty" yaml:"randomLike,omitempty"`
	MaxCount            int         `json:"maxCount" yaml:"maxCount"`
}

// Default returns the v2 defaults: empty forest, 5-15s watch range, target
// of 10 engagements.
func Default() Settings {
	return Settings{
		Version:             VersionV2,
		RuleGroups:          []RuleGroup{},
		BlockKeywords:       []string{},
		AuthorBlockKeywords: []string{},
		WatchTimeRange:      [2]int{5, 15},
		MaxCount:            10,
	}
}

// Validate checks structural invariants. Violations are configuration
// mistakes surfaced before a run starts, not runtime conditions.
func (s Settings) Validate() error {
	if s.Version != VersionV2 {
		return fmt.Errorf("unsupported configuration version %q", s.Version)
	}
	if s.WatchTimeRange[0] < 0 || s.WatchTimeRange[1] < s.WatchTimeRange[0] {
		return fmt.Errorf("watch time range [%d,%d] must be a non-negative closed interval",
			s.WatchTimeRange[0], s.WatchTimeRange[1])
	}
	if s.MaxCount <= 0 {
		return fmt.Errorf("max engagement count must be positive, got %d", s.MaxCount)
	}
	seen := make(map[string]bool)
	var walk func(groups []RuleGroup, path string) error
	walk = func(groups []RuleGroup, path string) error {
		for _, g := range groups {
			where := path + "/" + g.Name
			if g.ID == "" {
				return fmt.Errorf("rule group %q has no id", where)
			}
			if seen[g.ID] {
				return fmt.Errorf("duplicate rule group id %q at %q", g.ID, where)
			}
			seen[g.ID] = true
			switch g.Type {
			case GroupManual:
				// An empty condition list never matches; flag it here
				// rather than letting the group silently dead-end.
				if len(g.Rules) == 0 {
					return fmt.Errorf("manual rule group %q has no conditions and can never match", where)
				}
				if g.Relation != "" && g.Relation != RelationAnd && g.Relation != RelationOr {
					return fmt.Errorf("rule group %q has invalid relation %q", where, g.Relation)
				}
			case GroupAI:
				if g.AIPrompt == "" {
					return fmt.Errorf("ai rule group %q has no instruction text", where)
				}
			default:
				return fmt.Errorf("rule group %q has unknown type %q", where, g.Type)
			}
			if g.Terminal() && !hasCommentText(g) {
				return fmt.Errorf("terminal rule group %q has no comment texts to post", where)
			}
			if err := walk(g.Children, where); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(s.RuleGroups, "")
}

// hasCommentText reports whether the group carries at least one non-blank
// comment text. Only terminal groups need one; routers never post.
func hasCommentText(g RuleGroup) bool {
	for _, t := range g.CommentTexts {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

// HasAIGroups reports whether any group in the forest needs a judgment
// client.
func (s Settings) HasAIGroups() bool {
	var walk func(groups []RuleGroup) bool
	walk = func(groups []RuleGroup) bool {
		for _, g := range groups {
			if g.Type == GroupAI || walk(g.Children) {
				return true
			}
		}
		return false
	}
	return walk(s.RuleGroups)
}

const groupIDAlphabet = "1234567890abcdef"

// NewGroupID returns a 16-char lowercase-hex token for a rule group.
func NewGroupID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("config: read random: %v", err))
	}
	for i := range b {
		b[i] = groupIDAlphabet[int(b[i])%len(groupIDAlphabet)]
	}
	return string(b)
}
