package errors

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "upload"))
	assert.NoError(t, Wrapf(nil, "read %s", "docs/a.txt"))
}

func TestWrapf_KeepsChain(t *testing.T) {
	err := Wrapf(ErrNotFound, "stat %s", "docs/a.txt")
	require.Error(t, err)
	assert.Equal(t, "stat docs/a.txt: not found", err.Error())
	assert.True(t, Is(err, ErrNotFound))

	outer := Wrap(err, "get metas")
	assert.True(t, Is(outer, ErrNotFound))
}

func TestAs(t *testing.T) {
	err := Wrap(&fs.PathError{Op: "open", Path: "/tmp/x", Err: fs.ErrNotExist}, "open source")
	var pe *fs.PathError
	require.True(t, As(err, &pe))
	assert.Equal(t, "/tmp/x", pe.Path)
	assert.True(t, Is(err, fs.ErrNotExist))
}
