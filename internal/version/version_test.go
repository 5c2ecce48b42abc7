package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origV, origSHA, origBuild := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origV, origSHA, origBuild }()

	Version, GitSHA, BuildTime = "1.2.0", "abc1234", "2026-10-19T12:00:00Z"
	assert.Equal(t, "1.2.0 (abc1234, built 2026-10-19T12:00:00Z)", String())
}
