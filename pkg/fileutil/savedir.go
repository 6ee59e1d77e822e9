package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrBadName is returned for custom data file names that would leave the save directory.
var ErrBadName = errors.New("invalid file name")

// SaveDir はゲームがカスタムデータを読み書きするディレクトリ
type SaveDir struct {
	path string
}

// NewSaveDir はpathをルートとするSaveDirを作成する
func NewSaveDir(path string) *SaveDir {
	return &SaveDir{path: path}
}

// DefaultSaveDir は game 名から既定の保存先を決める
// ユーザー設定ディレクトリが使えない場合はカレントディレクトリを使う
func DefaultSaveDir(gameName string) *SaveDir {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return NewSaveDir(filepath.Join(base, "sludge-vm", EncodeFilename(gameName)))
}

// Path returns the directory path.
func (s *SaveDir) Path() string {
	return s.path
}

// Ensure creates the directory if needed.
func (s *SaveDir) Ensure() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("save directory is inaccessible: %w", err)
	}
	return nil
}

// Resolve maps a script-supplied name to a path inside the directory.
// An existing file whose name differs only in case is preferred.
func (s *SaveDir) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	// まず直接アクセスを試みる
	direct := filepath.Join(s.path, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}
	// 大文字小文字を無視して検索
	if found, err := FindFileCaseInsensitive(s.path, name); err == nil {
		return found, nil
	}
	return direct, nil
}

// Exists reports whether a regular file called name is present.
func (s *SaveDir) Exists(name string) bool {
	p, err := s.Resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

var filenameEscapes = map[rune]string{
	'<':  "_L",
	'>':  "_G",
	'|':  "_P",
	'_':  "_U",
	'"':  "_S",
	'\\': "_B",
	'/':  "_F",
	':':  "_C",
	'*':  "_A",
	'?':  "_Q",
}

// EncodeFilename turns a game title into a name usable as a directory.
// Reserved characters become two-character escapes starting with '_'.
func EncodeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if esc, ok := filenameEscapes[r]; ok {
			b.WriteString(esc)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
