package config

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectVersion(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"legacy flat rules", `{"rules":[{"field":"videoDesc","keyword":"x"}],"ruleRelation":"or"}`, "v1"},
		{"versioned", `{"version":"v2","ruleGroups":[]}`, "v2"},
		{"empty object", `{}`, "unknown"},
		{"garbage", `nope`, "unknown"},
		{"version wins over rules", `{"version":"v2","rules":[]}`, "v2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectVersion([]byte(tc.raw)))
		})
	}
}

func TestMigrateWrapsFlatRules(t *testing.T) {
	raw := []byte(`{
		"blockKeywords":["ad"],
		"authorBlockKeywords":["mcn"],
		"ruleRelation":"and",
		"rules":[{"field":"videoDesc","keyword":"travel"},{"field":"nickName","keyword":"guide"}],
		"simulateWatchBeforeComment":true,
		"watchTimeRangeSeconds":[3,9],
		"onlyCommentActiveVideo":true,
		"commentTexts":["nice","great"],
		"commentImagePath":"/tmp/pics",
		"commentImageType":"folder"
	}`)

	s, err := Migrate(raw)
	require.NoError(t, err)

	assert.Equal(t, VersionV2, s.Version)
	require.Len(t, s.RuleGroups, 1)
	g := s.RuleGroups[0]
	assert.Equal(t, GroupManual, g.Type)
	assert.Equal(t, RelationAnd, g.Relation)
	assert.Len(t, g.ID, 16)
	assert.Equal(t, []string{"nice", "great"}, g.CommentTexts)
	assert.Equal(t, "/tmp/pics", g.CommentImagePath)
	assert.Equal(t, AttachmentFolder, g.CommentImageType)
	assert.True(t, g.Terminal())

	assert.Equal(t, []string{"ad"}, s.BlockKeywords)
	assert.Equal(t, []string{"mcn"}, s.AuthorBlockKeywords)
	assert.True(t, s.SimulateWatch)
	assert.Equal(t, [2]int{3, 9}, s.WatchTimeRange)
	assert.True(t, s.OnlyActive)
	assert.Equal(t, 10, s.MaxCount)
}

func TestMigrateEmptyRulesYieldsEmptyForest(t *testing.T) {
	s, err := Migrate([]byte(`{"rules":[],"ruleRelation":"or","commentTexts":["hi"]}`))
	require.NoError(t, err)
	assert.Empty(t, s.RuleGroups)
}

func TestMigrateIdempotent(t *testing.T) {
	first, err := Migrate([]byte(`{"rules":[{"field":"videoTag","keyword":"food"}],"ruleRelation":"or","commentTexts":["yum"]}`))
	require.NoError(t, err)

	raw, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := Migrate(raw)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-migrating a versioned configuration changed it (-first +second):\n%s", diff)
	}
}

func TestMigrateUnknownFallsBackToDefault(t *testing.T) {
	s, err := Migrate([]byte(`{"something":"else"}`))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}
