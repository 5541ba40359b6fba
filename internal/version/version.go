// Package version identifies this build and checks client/server compatibility.
package version

import "golang.org/x/mod/semver"

// Version is the release of cartsyncd and cartctl. Set with
// -ldflags "-X cartsync/internal/version.Version=1.2.3".
var Version = "1.0.0"

// Compatible reports whether a client at version client can talk to a server
// at version server. Semver releases must share a major version; anything that
// does not parse as semver is only compatible with an identical string.
func Compatible(server, client string) bool {
	sv := normalize(server)
	cv := normalize(client)

	if !semver.IsValid(sv) || !semver.IsValid(cv) {
		return server == client
	}
	return semver.Major(sv) == semver.Major(cv)
}

// Newer reports whether server is a later release than client.
func Newer(server, client string) bool {
	sv := normalize(server)
	cv := normalize(client)
	if !semver.IsValid(sv) || !semver.IsValid(cv) {
		return false
	}
	return semver.Compare(sv, cv) > 0
}

// normalize adds the "v" prefix semver parsing requires.
func normalize(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
