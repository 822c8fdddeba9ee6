package sync

import (
	"bufio"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/torfstack/notedav/internal/local"
	"github.com/torfstack/notedav/internal/logging"
)

// IgnoreFile holds extra gitignore-style rules at the vault root.
const IgnoreFile = ".notedavignore"

var defaultIgnoreLines = []string{
	// notedav
	".notedav*",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	// editors and tools
	".git/",
	".trash/",
	"*.tmp",
	"*.swp",
	"*~",
}

// IgnoreList decides which vault paths are never synchronized.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// LoadIgnoreList compiles the default rules plus those in the vault's
// ignore file, if present.
func LoadIgnoreList(tree *local.Tree) *IgnoreList {
	lines := append([]string{}, defaultIgnoreLines...)

	if text := tree.ReadText(IgnoreFile); text != "" {
		rules := 0
		scanner := bufio.NewScanner(strings.NewReader(text))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				lines = append(lines, line)
				rules++
			}
		}
		logging.Debugf("Loaded %d rules from %s", rules, IgnoreFile)
	}

	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

// ShouldIgnore reports whether the vault-relative path is excluded.
func (i *IgnoreList) ShouldIgnore(rel string, isDir bool) bool {
	if i == nil || i.ignore == nil {
		return false
	}
	if isDir {
		rel += "/"
	}
	return i.ignore.MatchesPath(rel)
}
