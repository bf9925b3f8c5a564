package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedac/internal/feed"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    bool
		wantErr bool
	}{
		{"bare json true", `{"shouldEngage": true}`, true, false},
		{"bare json false", `{"shouldEngage": false}`, false, false},
		{"fenced", "```json\n{\"shouldEngage\": true}\n```", true, false},
		{"prose around", `Sure. {"shouldEngage": true} Hope that helps!`, true, false},
		{"plain yes", `yes`, false, true},
		{"empty", ``, false, true},
		{"broken json", `{"shouldEngage": `, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := parseVerdict(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.ShouldEngage)
		})
	}
}

func TestBuildJudgePromptIncludesItemFields(t *testing.T) {
	it := feed.Item{
		AwemeID: "1",
		Desc:    "street food tour",
		Author:  feed.Author{Nickname: "eats daily"},
		VideoTag: []feed.Tag{
			{TagName: "food"},
		},
	}
	p := buildJudgePrompt("food content only", it)
	assert.Contains(t, p, "food content only")
	assert.Contains(t, p, "street food tour")
	assert.Contains(t, p, "eats daily")
	assert.Contains(t, p, "food")
	assert.Contains(t, p, "shouldEngage")
}

func TestJudgeAgainstChatEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "```json\n{\"shouldEngage\": true}\n```"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	judge := NewJudge(NewChatClient("sk-test", srv.URL, "test-model"))
	ok, err := judge.Judge(context.Background(), "anything", feed.Item{AwemeID: "1"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChatClientErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewChatClient("", "http://unused", "m").Complete(context.Background(), "p")
		assert.Error(t, err)
	})

	t.Run("api error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"message": "invalid model"},
			})
		}))
		defer srv.Close()

		_, err := NewChatClient("k", srv.URL, "m").Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid model")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
		}))
		defer srv.Close()

		_, err := NewChatClient("k", srv.URL, "m").Complete(context.Background(), "p")
		assert.Error(t, err)
	})
}

func TestArkClientDisablesThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Thinking)
		assert.Equal(t, "disabled", req.Thinking.Type)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "{\"shouldEngage\": false}"}},
			},
		})
	}))
	defer srv.Close()

	out, err := NewArkClient("k", srv.URL, "m").Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Contains(t, out, "shouldEngage")
}

func TestFactoryRejectsUnknownPlatform(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Platform: "mystery", APIKey: "k"})
	assert.Error(t, err)
}
