package sessionfile_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/adapter/platform/sessionfile"
	"github.com/fairyhunter13/jobscout/internal/domain"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestStore_RoundTrip_Encrypted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := sessionfile.New(dir, testKey)
	require.NoError(t, err)

	blob := []byte("opaque-session-material")
	require.NoError(t, st.Save(context.Background(), 1, blob))

	got, err := st.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	// Bytes at rest must not contain the plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, "account-1.session"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "opaque-session-material"))
}

func TestStore_RoundTrip_Plain(t *testing.T) {
	t.Parallel()
	st, err := sessionfile.New(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), 2, []byte("s")))
	got, err := st.Load(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), got)
}

func TestStore_MissingAccount(t *testing.T) {
	t.Parallel()
	st, err := sessionfile.New(t.TempDir(), "")
	require.NoError(t, err)
	_, err = st.Load(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_BadKey(t *testing.T) {
	t.Parallel()
	_, err := sessionfile.New(t.TempDir(), "zz")
	require.Error(t, err)
}
