package config

import (
	"net/url"
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. Cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running
// inside a container, so services on the host machine stay reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

// resolveDockerHosts rewrites the Postgres, Redis, and LLM hosts in place.
func (c *Config) resolveDockerHosts() {
	c.Database.Host = ResolveHostForDocker(c.Database.Host)
	if c.Redis.Host != "" {
		c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
	}
	c.LLM.BaseURL = resolveURLForDocker(c.LLM.BaseURL)
}

// resolveURLForDocker applies ResolveHostForDocker to the host part of raw,
// keeping the port. Unparseable URLs are returned unchanged.
func resolveURLForDocker(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := ResolveHostForDocker(u.Hostname())
	if host == u.Hostname() {
		return raw
	}
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	return u.String()
}
