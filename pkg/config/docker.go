package config

import (
	"os"
	"sync"
)

// DockerHostAlias is the name a container uses to reach services on its host.
const DockerHostAlias = "host.docker.internal"

// containerMarkers exist inside Docker and Podman containers respectively.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var (
	inContainerOnce sync.Once
	inContainer     bool

	// detectContainer is replaced in tests.
	detectContainer = func() bool {
		for _, marker := range containerMarkers {
			if _, err := os.Stat(marker); err == nil {
				return true
			}
		}
		return false
	}
)

// IsRunningInDocker reports whether grepdb runs inside a container. The
// result is cached after the first call.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		inContainer = detectContainer()
	})
	return inContainer
}

// ResolveHostForDocker maps a loopback datasource host to DockerHostAlias
// when running in a container, so "localhost" still reaches a database on
// the host machine. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() || !isLoopback(host) {
		return host
	}
	return DockerHostAlias
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "[::1]":
		return true
	}
	return false
}
