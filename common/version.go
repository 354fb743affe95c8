// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

var (
	// commitHash contains the current Git revision.
	// Use mage to build to make sure this gets set.
	commitHash string

	// buildDate contains the date of the current build.
	buildDate string
)

// Version represents a SemVer 2.0.0 compatible build version
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// BuildInfo describes the running binary
type BuildInfo struct {
	Program      string   `json:"program"`
	Version      string   `json:"version"`
	Platform     string   `json:"platform"`
	GoVersion    string   `json:"goVersion"`
	BuildDate    string   `json:"buildDate"`
	Commit       string   `json:"commit"`
	Dependencies []string `json:"dependencies,omitempty"`
}

func (v Version) String() string {
	metadata := ""
	preRelease := ""

	if v.Suffix != "" {
		preRelease = fmt.Sprintf("-%s", v.Suffix)
		if commitHash != "" {
			metadata = fmt.Sprintf("+%s", strings.ToLower(commitHash))
		}
	}

	return fmt.Sprintf("%d.%d.%d%s%s", v.Major, v.Minor, v.Patch, preRelease, metadata)
}

// dependencyList returns a sorted list of module dependencies formatted as path="version"
func dependencyList() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}
	sort.Strings(deps)
	return deps
}

// GetBuildInfo collects version details about the current binary
func GetBuildInfo(withDeps bool) BuildInfo {
	date := buildDate
	if date == "" {
		date = "unknown"
	}

	info := BuildInfo{
		Program:   "pvrisk",
		Version:   "v" + CurrentVersion.String(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
		BuildDate: date,
		Commit:    commitHash,
	}

	if withDeps {
		info.Dependencies = dependencyList()
	}

	return info
}

// BuildVersionString creates a version string. This is what you see when
// running "pvrisk version".
func BuildVersionString() string {
	info := GetBuildInfo(true)

	versionString := fmt.Sprintf(`%s %s %s

Build Date: %s
Commit: %s
Built with: %s`,
		info.Program, info.Version, info.Platform, info.BuildDate, info.Commit, info.GoVersion)

	if len(info.Dependencies) > 0 {
		versionString += "\n\nDependencies:\n\n" + strings.Join(info.Dependencies, "\n")
	}

	return versionString
}
