package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", &buf)
	require.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Info("should not appear")
	l.Warn("should appear")
	require.NotContains(t, buf.String(), "should not appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l := New("not-a-level", &bytes.Buffer{})
	require.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestWithConnTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", &buf)
	id := NewConnectionID()
	l.WithConn(id).Info("hello")
	require.Contains(t, buf.String(), id)
	require.True(t, strings.Contains(buf.String(), "conn="))
}

func TestNewConnectionIDsAreUnique(t *testing.T) {
	a := NewConnectionID()
	b := NewConnectionID()
	require.NotEqual(t, a, b)
}
