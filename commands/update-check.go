package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/google/go-github/github"
)

//Strings used for informing the user of a new version.
var informFmtStr = "\nTheres a new %s version of flowsentry %s available at:\nhttps://github.com/activecm/flowsentry/releases\n"
var versions = []string{"Major", "Minor", "Patch"}

// updateCheck looks up the newest release tag and returns a notice when
// it is newer than localVersion. Failures return "".
func updateCheck(localVersion string) string {
	configVersion, err := semver.ParseTolerant(localVersion)
	if err != nil {
		return ""
	}

	newVersion, err := getRemoteVersion()
	if err != nil {
		return ""
	}

	if newVersion.GT(configVersion) {
		return informUser(configVersion, newVersion)
	}
	return ""
}

// Returns the first index where v1 is greater than v2
func versionDiffIndex(v1 semver.Version, v2 semver.Version) int {
	if v1.Major > v2.Major {
		return 0
	}
	if v1.Minor > v2.Minor {
		return 1
	}
	return 2
}

func getRemoteVersion() (semver.Version, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := github.NewClient(nil)
	refs, _, err := client.Git.GetRefs(ctx, "activecm", "flowsentry", "refs/tags/v")
	if err != nil {
		return semver.Version{}, err
	}
	if len(refs) == 0 {
		return semver.Version{}, fmt.Errorf("no release tags found")
	}
	return newestTag(refs[len(refs)-1].GetRef())
}

func newestTag(ref string) (semver.Version, error) {
	return semver.ParseTolerant(strings.TrimPrefix(ref, "refs/tags/"))
}

// Assembles a notice for the user informing them of an upgrade.
// The return value is printed regardless so, "" is returned on errror.
func informUser(local semver.Version, remote semver.Version) string {
	return fmt.Sprintf(informFmtStr,
		versions[versionDiffIndex(remote, local)],
		fmt.Sprint(remote))
}
