package contracts

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFullVersionString(t *testing.T) {
	assert.Equal(t, "pixelqc v"+Version, GetVersionString())

	full := GetFullVersionString()
	assert.True(t, strings.HasPrefix(full, GetVersionString()+" ("))
	assert.Contains(t, full, "data format "+DataFormatVersion)
	assert.Contains(t, full, "commit "+GitCommit)
	assert.Contains(t, full, runtime.GOOS+"/"+runtime.GOARCH)
}
