package git

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangedFile is a path reported by git diff, relative to the directory the
// diff ran in.
type ChangedFile struct {
	Path string
	// Status is the first letter of git's status column: A, M, D, R, C or T.
	Status byte
}

// Deleted reports whether the file no longer exists in the working tree.
func (c ChangedFile) Deleted() bool {
	return c.Status == 'D'
}

// GetChangedFiles runs git diff in dir against baseRef and returns the files
// that changed, with paths relative to dir.
func GetChangedFiles(dir, baseRef string) ([]ChangedFile, error) {
	cmd := exec.Command("git", "-C", dir, "diff", "--name-status", "--relative", baseRef)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return parseNameStatus(output), nil
}

func parseNameStatus(output []byte) []ChangedFile {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		// Renames and copies list the old path first; the new one is last.
		path := fields[len(fields)-1]
		changes = append(changes, ChangedFile{
			Path:   filepath.FromSlash(path),
			Status: fields[0][0],
		})
	}
	return changes
}
