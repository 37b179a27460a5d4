// Package git locates the project root that configuration, baselines and
// relative issue paths are resolved against.
package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"triage/cli/internal/erruser"
)

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --show-toplevel" with Dir=dir. Returns error if dir is
// not inside a git repository or git is not installed.
func RepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", err)
	}
	root := strings.TrimSpace(string(out))
	return filepath.Abs(root)
}

// ProjectRoot returns the repository root containing dir, or dir itself
// (absolute) when dir is not inside a repository.
func ProjectRoot(dir string) (root string, inRepo bool, err error) {
	if r, err := RepoRoot(dir); err == nil {
		return r, true, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, erruser.New("Could not resolve project directory.", err)
	}
	return abs, false, nil
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat", // prevent pager; subprocess output is captured
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}
