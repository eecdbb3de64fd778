package framework

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingLoggerKeepsMessagesInOrder(t *testing.T) {
	var l CapturingLogger
	l.Printf("first %d", 1)
	l.Printf("second %s", "message")

	output := l.Output()
	require.Len(t, output, 2)
	assert.Equal(t, "first 1", output[0].Message)
	assert.Equal(t, "second message", output[1].Message)
}

func TestLoggerWithPrefix(t *testing.T) {
	var l CapturingLogger
	LoggerWithPrefix(&l, "[page] ").Printf("call to %s", "/images")

	output := l.Output()
	require.Len(t, output, 1)
	assert.Equal(t, "[page] call to /images", output[0].Message)
}

func TestLoggerWithPrefixOfNilLoggerDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		LoggerWithPrefix(nil, "x").Printf("ignored")
	})
}

func TestCapturedOutputDump(t *testing.T) {
	var l CapturingLogger
	l.Printf("hello")
	l.Printf("world")

	var buf bytes.Buffer
	l.Output().Dump(&buf, "  DEBUG ")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "  DEBUG ["))
	assert.True(t, strings.HasSuffix(lines[1], "] world"))
}
