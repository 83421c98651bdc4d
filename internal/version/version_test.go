package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "0123456", BuildInfo{GitCommit: "0123456789abcdef"}.ShortCommit())
	assert.Equal(t, "abc", BuildInfo{GitCommit: "abc"}.ShortCommit())
}

func TestGetVersionInfo(t *testing.T) {
	out := GetVersionInfo("diagxml")
	assert.True(t, strings.HasPrefix(out, "diagxml version "+Version))
	assert.Contains(t, out, "Go: "+runtime.Version())
	assert.Contains(t, out, "Platform: "+runtime.GOOS+"/"+runtime.GOARCH)
}
