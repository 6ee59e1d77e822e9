// Package cli parses the sludge-vm command line.
package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/sludge-vm/pkg/fileutil"
)

// DataFileExt is the extension of compiled game data files.
const DataFileExt = ".slg"

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	DataFile    string        // データファイル（.slg）またはそれを含むディレクトリ
	Timeout     time.Duration // タイムアウト時間（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	Headless    bool          // ヘッドレスモード
	Console     bool          // ステップ実行コンソール
	Language    int           // 言語ID
	LanguageSet bool          // 言語IDが指定されたかどうか
	SaveDir     string        // カスタムデータの保存先（空ならデフォルト）
	FPS         int           // フレームレート（0はデータファイルの値）
	ConfigFile  string        // 設定ファイル（TOML）
	ShowHelp    bool          // ヘルプ表示フラグ
}

// ParseArgs コマンドライン引数を解析してConfigを返す
// 優先順位: コマンドラインフラグ > 環境変数 > 設定ファイル > デフォルト
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("sludge-vm", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec, language int
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.BoolVar(&config.Console, "console", false, "ステップ実行コンソール")
	fs.IntVar(&language, "language", 0, "言語ID")
	fs.StringVar(&config.SaveDir, "save-dir", "", "カスタムデータの保存先")
	fs.IntVar(&config.FPS, "fps", 0, "フレームレート")
	fs.StringVar(&config.ConfigFile, "config", "", "設定ファイル（TOML）")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	file := &FileConfig{}
	if config.ConfigFile != "" {
		var err error
		if file, err = LoadFile(config.ConfigFile); err != nil {
			return nil, err
		}
	}

	// ヘッドレスモード
	if !set["headless"] {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		} else if file.Headless != nil {
			config.Headless = *file.Headless
		}
	}
	if !set["console"] && file.Console != nil {
		config.Console = *file.Console
	}

	// タイムアウト
	if !set["timeout"] && !set["t"] {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		} else if file.Timeout != 0 {
			timeoutSec = file.Timeout
		}
	}

	// ログレベル
	if !set["log-level"] && !set["l"] {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		} else if file.LogLevel != "" {
			config.LogLevel = strings.ToLower(file.LogLevel)
		}
	}

	// 保存先
	if !set["save-dir"] {
		if saveDirEnv := os.Getenv("SLUDGE_SAVE_DIR"); saveDirEnv != "" {
			config.SaveDir = saveDirEnv
		} else {
			config.SaveDir = file.SaveDir
		}
	}

	if set["language"] {
		config.Language, config.LanguageSet = language, true
	} else if file.Language != nil {
		config.Language, config.LanguageSet = *file.Language, true
	}
	if !set["fps"] {
		config.FPS = file.FPS
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if config.FPS < 0 || config.FPS > 255 {
		return nil, fmt.Errorf("fps must be between 0 and 255, got %d", config.FPS)
	}
	if config.LanguageSet && config.Language < 0 {
		return nil, fmt.Errorf("language must be non-negative, got %d", config.Language)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// 位置引数（データファイルのパス）
	if fs.NArg() > 0 {
		config.DataFile = fs.Arg(0)
	} else {
		config.DataFile = file.DataFile
	}

	return config, nil
}

// ResolveDataFile はパスがディレクトリの場合、その中の.slgファイルを探す
func ResolveDataFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no data file given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	name, err := fileutil.FindByExtension(os.DirFS(path), ".", DataFileExt)
	if err != nil {
		return "", err
	}
	return filepath.Join(path, name), nil
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h": true, "--h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
	"-console": true, "--console": true,
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5 のように次の引数が値の場合
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if !boolFlags[arg] && !strings.Contains(arg, "=") {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `sludge-vm - SLUDGE game runner

Usage:
  sludge-vm [options] [data-file]

Arguments:
  data-file     コンパイル済みデータファイル（.slg）、またはそれを含むディレクトリ
                ディレクトリを指定した場合、最初の.slgファイルを使用

Options:
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（GUIなし）
  --console                   ステップ実行コンソール（ヘッドレス）
  --language <id>             言語IDを指定（デフォルト: 選択画面、または既定の言語）
  --save-dir <dir>            カスタムデータの保存先
  --fps <n>                   フレームレートを上書き
  --config <file>             TOML設定ファイル
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  SLUDGE_SAVE_DIR=<dir>       カスタムデータの保存先

Examples:
  sludge-vm game.slg                   データファイルを指定
  sludge-vm /path/to/game              ディレクトリを指定（.slgを自動検出）
  sludge-vm --headless --timeout 10 game.slg
  sludge-vm --console game.slg         1ティックずつ実行
  sludge-vm --config sludge.toml       設定ファイルを使用
`)
}
