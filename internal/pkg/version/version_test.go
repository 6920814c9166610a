package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectedValuesWin(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v1.2.3", "abc1234", "2026-09-30 10:00:00"
	assert.Equal(t, "v1.2.3, commit abc1234, built at 2026-09-30 10:00:00", GetVersionString())

	info := GetBuildInfo()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
