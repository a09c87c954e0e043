package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))

	thisYear := time.Date(time.Now().Year(), 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mar  5 14:30", formatTime(thisYear))

	oldYear := time.Date(2019, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mar  5  2019", formatTime(oldYear))
}

func TestPrintTable_WithHeaders(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, []string{"NAME", "SIZE"}, [][]string{
		{"a.txt", "10 B"},
		{"longer-name.txt", "1.0 KB"},
	})

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "NAME             SIZE", lines[0])
	assert.Equal(t, "a.txt            10 B", lines[1])
	assert.Equal(t, "longer-name.txt  1.0 KB", lines[2])
}

func TestPrintTable_NoHeaders(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, nil, [][]string{
		{"a", "1"},
		{"bb", "22"},
	})

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "a   1", lines[0])
	assert.Equal(t, "bb  22", lines[1])
}

func TestPrintTable_Empty(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, nil, nil)
	assert.Empty(t, sb.String())
}
