package config

import "encoding/json"

// legacySettings is the unversioned flat-rule format: one global rule list
// with one relation, plus the comment payload at the top level.
type legacySettings struct {
	BlockKeywords       []string       `json:"blockKeywords"`
	AuthorBlockKeywords []string       `json:"authorBlockKeywords"`
	RuleRelation        Relation       `json:"ruleRelation"`
	Rules               []Rule         `json:"rules"`
	SimulateWatch       bool           `json:"simulateWatchBeforeComment"`
	WatchTimeRange      [2]int         `json:"watchTimeRangeSeconds"`
	OnlyActive          bool           `json:"onlyCommentActiveVideo"`
	CommentTexts        []string       `json:"commentTexts"`
	CommentImagePath    string         `json:"commentImagePath"`
	CommentImageType    AttachmentMode `json:"commentImageType"`
}

// DetectVersion classifies a raw configuration document. Legacy documents
// have a rules array and no version tag.
func DetectVersion(raw []byte) string {
	var probe struct {
		Version *string          `json:"version"`
		Rules   *json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "unknown"
	}
	if probe.Version == nil && probe.Rules != nil {
		return "v1"
	}
	if probe.Version != nil && *probe.Version == VersionV2 {
		return VersionV2
	}
	return "unknown"
}

// Migrate converts a raw configuration document to the v2 shape. A v2
// document is returned unchanged (re-migration is a no-op); a legacy
// document has its flat rules and comment payload wrapped in one synthesized
// top-level manual group; anything else falls back to the defaults.
func Migrate(raw []byte) (Settings, error) {
	switch DetectVersion(raw) {
	case VersionV2:
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			return Settings{}, err
		}
		return s, nil
	case "v1":
		var v1 legacySettings
		if err := json.Unmarshal(raw, &v1); err != nil {
			return Settings{}, err
		}
		return migrateV1(v1), nil
	default:
		return Default(), nil
	}
}

func migrateV1(v1 legacySettings) Settings {
	groups := []RuleGroup{}
	if len(v1.Rules) > 0 {
		groups = append(groups, RuleGroup{
			ID:               NewGroupID(),
			Type:             GroupManual,
			Name:             "Default rule group",
			Relation:         v1.RuleRelation,
			Rules:            append([]Rule(nil), v1.Rules...),
			CommentTexts:     append([]string(nil), v1.CommentTexts...),
			CommentImagePath: v1.CommentImagePath,
			CommentImageType: v1.CommentImageType,
		})
	}
	return Settings{
		Version:             VersionV2,
		RuleGroups:          groups,
		BlockKeywords:       append([]string{}, v1.BlockKeywords...),
		AuthorBlockKeywords: append([]string{}, v1.AuthorBlockKeywords...),
		SimulateWatch:       v1.SimulateWatch,
		WatchTimeRange:      v1.WatchTimeRange,
		OnlyActive:          v1.OnlyActive,
		MaxCount:            10,
	}
}
