package abi

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// Tag identifies the processor architecture of the running device
type Tag string

const (
	TagArm64  Tag = "arm64-v8a"
	TagArmV7  Tag = "armeabi-v7a"
	TagX86    Tag = "x86"
	TagX86_64 Tag = "x86_64"
)

// ListEnvVar carries the platform-reported ABI list, most preferred first
const ListEnvVar = "CRASHKEEPER_ABI_LIST"

// unsupportedTags lists the tags native crash handling refuses to run on
var unsupportedTags = [...]Tag{TagX86}

var goarchTags = map[string]Tag{
	"arm64": TagArm64,
	"arm":   TagArmV7,
	"386":   TagX86,
	"amd64": TagX86_64,
}

var (
	currentOnce sync.Once
	current     Tag
)

// Current returns the ABI tag of the running process. The value is computed
// once and never changes afterwards.
func Current() Tag {
	currentOnce.Do(func() {
		current = detect(os.Getenv(ListEnvVar), runtime.GOARCH)
	})
	return current
}

// IsSupported reports whether native crash handling may run on tag
func IsSupported(tag Tag) bool {
	for _, unsupported := range unsupportedTags {
		if tag == unsupported {
			return false
		}
	}
	return true
}

// UnsupportedTags returns a copy of the tags IsSupported rejects
func UnsupportedTags() []Tag {
	return append([]Tag(nil), unsupportedTags[:]...)
}

// Primary picks the canonical tag from a platform ABI list. Legacy platforms
// report several ABIs; the first listed one is the primary.
func Primary(list []string) Tag {
	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			return Tag(entry)
		}
	}
	return ""
}

// FromGOARCH maps a Go architecture name to its ABI tag
func FromGOARCH(goarch string) Tag {
	if tag, ok := goarchTags[goarch]; ok {
		return tag
	}
	return Tag(goarch)
}

func detect(reported string, goarch string) Tag {
	if reported != "" {
		if tag := Primary(strings.Split(reported, ",")); tag != "" {
			return tag
		}
	}
	return FromGOARCH(goarch)
}

func (t Tag) String() string {
	return string(t)
}
