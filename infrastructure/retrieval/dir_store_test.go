package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-desirability/internal/ports"
)

func TestDirStore_Fetch(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`[{"source_name": "x", "label_weights": {"#tao": 1}}]`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5Fhot.json"), doc, 0o600))

	store := NewDirStore(dir)
	ctx := context.Background()

	t.Run("reads existing document", func(t *testing.T) {
		data, err := store.Fetch(ctx, "5Fhot")
		require.NoError(t, err)
		assert.Equal(t, doc, data)
	})

	t.Run("missing document is no submission", func(t *testing.T) {
		_, err := store.Fetch(ctx, "5Fother")
		assert.ErrorIs(t, err, ports.ErrNoSubmission)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		for _, hotkey := range []string{"../etc/passwd", `a\b`, "..", ""} {
			_, err := store.Fetch(ctx, hotkey)
			var rerr *ports.RetrievalError
			assert.ErrorAs(t, err, &rerr, "hotkey %q", hotkey)
		}
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Fetch(cctx, "5Fhot")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore(t *testing.T) {
	src := []byte(`[]`)
	store := NewMemoryStore(map[string][]byte{"a": src})
	src[0] = 'X'

	data, err := store.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data, "store keeps its own copy")

	data[0] = 'Y'
	again, _ := store.Fetch(context.Background(), "a")
	assert.Equal(t, []byte(`[]`), again)

	_, err = store.Fetch(context.Background(), "b")
	assert.ErrorIs(t, err, ports.ErrNoSubmission)
}

func TestFileStakeResolver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stakes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- hotkey: 5Fa
  stake: 0.25
- hotkey: 5Fb
`), 0o600))

	participants, err := NewFileStakeResolver(path).Participants(context.Background())
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "5Fa", participants[0].Hotkey)
	assert.Equal(t, 0.25, participants[0].StakeOrDefault())
	assert.Nil(t, participants[1].Stake)
	assert.Equal(t, 1.0, participants[1].StakeOrDefault())
}

func TestParseParticipants(t *testing.T) {
	t.Run("accepts json", func(t *testing.T) {
		participants, err := ParseParticipants([]byte(`[{"hotkey": "a", "stake": 0.5}]`))
		require.NoError(t, err)
		require.Len(t, participants, 1)
		assert.Equal(t, 0.5, participants[0].StakeOrDefault())
	})

	t.Run("rejects missing hotkey", func(t *testing.T) {
		_, err := ParseParticipants([]byte(`[{"stake": 0.5}]`))
		assert.ErrorContains(t, err, "no hotkey")
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseParticipants([]byte(`{not: [valid`))
		assert.Error(t, err)
	})
}

func TestStaticStakeResolver(t *testing.T) {
	r := StaticStakeResolver{{Hotkey: "a"}}
	got, err := r.Participants(context.Background())
	require.NoError(t, err)
	got[0].Hotkey = "mutated"
	assert.Equal(t, "a", r[0].Hotkey)
}
