package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCheckKeepsLogsOffStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", "", "-check", "BTC/USD", "-capital", "100"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Equal(t, "BTC/USD is not a valid pair, example: BTCUSDT\n", stdout.String())
	assert.NotContains(t, stdout.String(), `"level"`)
}

func TestRunCheckBadCapital(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", "", "-check", "BTCUSDT", "-capital", "lots"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Empty(t, stdout.String())
	assert.True(t, strings.HasPrefix(stderr.String(), `invalid -capital "lots"`))
}

func TestRunBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
}
