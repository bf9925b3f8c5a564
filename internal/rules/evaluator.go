// Package rules evaluates the rule-group decision tree against feed items
// and classifies author activity from recent comment timestamps.
package rules

import (
	"context"
	"strings"

	"feedac/internal/config"
	"feedac/internal/feed"
	"feedac/internal/logging"
)

// Judge decides whether an item satisfies an AI group's instruction text.
type Judge interface {
	Judge(ctx context.Context, instruction string, item feed.Item) (bool, error)
}

// Match walks the rule-group forest and returns the terminal group whose
// engagement payload should be used, or nil when no group selects the item.
//
// Siblings are tried in order and the first one that yields a terminal
// match wins; later siblings are never evaluated after that. A group with
// children must match AND have a matching descendant; when its descendants
// all reject, the branch yields nothing and evaluation falls through to
// the next sibling.
func Match(ctx context.Context, groups []config.RuleGroup, item feed.Item, judge Judge) *config.RuleGroup {
	for i := range groups {
		if got := matchTree(ctx, &groups[i], item, judge); got != nil {
			return got
		}
	}
	return nil
}

func matchTree(ctx context.Context, g *config.RuleGroup, item feed.Item, judge Judge) *config.RuleGroup {
	if !matchGroup(ctx, g, item, judge) {
		return nil
	}
	if g.Terminal() {
		logging.Rules("item %s matched group %q", item.AwemeID, g.Name)
		return g
	}
	return Match(ctx, g.Children, item, judge)
}

func matchGroup(ctx context.Context, g *config.RuleGroup, item feed.Item, judge Judge) bool {
	switch g.Type {
	case config.GroupAI:
		if judge == nil {
			logging.Rules("group %q skipped: no judge configured", g.Name)
			return false
		}
		ok, err := judge.Judge(ctx, g.AIPrompt, item)
		if err != nil {
			// Judgment failures never engage.
			logging.Get(logging.CategoryRules).Warn("group %q judgment failed: %v", g.Name, err)
			return false
		}
		return ok
	case config.GroupManual:
		return matchManual(g, item)
	default:
		return false
	}
}

func matchManual(g *config.RuleGroup, item feed.Item) bool {
	if len(g.Rules) == 0 {
		return false
	}
	for _, r := range g.Rules {
		hit := matchRule(r, item)
		if g.Relation == config.RelationAnd {
			if !hit {
				return false
			}
		} else if hit {
			return true
		}
	}
	return g.Relation == config.RelationAnd
}

// matchRule is a case-sensitive substring test against one item field.
func matchRule(r config.Rule, item feed.Item) bool {
	if r.Keyword == "" {
		return false
	}
	switch r.Field {
	case config.FieldAuthorName:
		return strings.Contains(item.Author.Nickname, r.Keyword)
	case config.FieldDescription:
		return strings.Contains(item.Desc, r.Keyword)
	case config.FieldTag:
		for _, name := range item.TagNames() {
			if strings.Contains(name, r.Keyword) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Blocked reports whether any keyword appears in the given text. Used for
// the global description and author block lists.
func Blocked(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
