package cli

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "v0.3.1"
	defer func() { version = originalVersion }()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "mentions version v0.3.1")
	assert.Contains(t, buf.String(), runtime.Version())
}

func TestVersionCmd_SkipsBootstrap(t *testing.T) {
	called := false
	SetBootstrap(func(_ context.Context, _ Options) (*Services, func(), error) {
		called = true
		return nil, nil, errors.New("should not be called")
	})
	defer SetBootstrap(nil)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	assert.NoError(t, rootCmd.Execute())
	assert.False(t, called)
	assert.Contains(t, buf.String(), "mentions version dev")
}
