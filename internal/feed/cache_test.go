package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheTakeRemoves(t *testing.T) {
	c := NewCache()
	c.Ingest(Item{AwemeID: "a1", Desc: "first"})

	it, ok := c.Take("a1")
	require.True(t, ok)
	assert.Equal(t, "first", it.Desc)

	_, ok = c.Take("a1")
	assert.False(t, ok, "second take of the same id must miss")
}

func TestCacheOverwriteByID(t *testing.T) {
	c := NewCache()
	c.Ingest(Item{AwemeID: "a1", Desc: "old"})
	c.Ingest(Item{AwemeID: "a1", Desc: "new"}, Item{AwemeID: "a2"})

	assert.Equal(t, 2, c.Len())
	it, ok := c.Take("a1")
	require.True(t, ok)
	assert.Equal(t, "new", it.Desc, "newer payload overwrites the older entry")
}

func TestCacheTakeUnknown(t *testing.T) {
	c := NewCache()
	_, ok := c.Take("missing")
	assert.False(t, ok)
}

func TestParseListResponse(t *testing.T) {
	body := []byte(`{"aweme_list":[{"aweme_id":"7","aweme_type":0,"desc":"d","author":{"nickname":"n","uid":"u"},"video_tag":[{"tag_name":"travel"}],"share_url":"https://x/7"}]}`)
	items, err := ParseListResponse(body)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].AwemeID)
	assert.Equal(t, []string{"travel"}, items[0].TagNames())

	_, err = ParseListResponse([]byte("not json"))
	assert.Error(t, err)
}
