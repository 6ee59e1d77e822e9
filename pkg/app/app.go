// Package app wires the command line, data file, machine and display together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/zurustar/sludge-vm/pkg/builtins"
	"github.com/zurustar/sludge-vm/pkg/cli"
	"github.com/zurustar/sludge-vm/pkg/console"
	"github.com/zurustar/sludge-vm/pkg/datafile"
	"github.com/zurustar/sludge-vm/pkg/engine"
	"github.com/zurustar/sludge-vm/pkg/fileutil"
	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/vm"
	"github.com/zurustar/sludge-vm/pkg/window"
)

const historyFile = ".sludge_history"

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config  *cli.Config
	log     *slog.Logger
	data    *datafile.File
	machine *vm.VM
	engine  *engine.Engine

	stdin  io.Reader
	stdout io.Writer
}

// Option configures an Application.
type Option func(*Application)

// WithIO sets the streams used for prompts, the console and logs.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(app *Application) {
		app.stdin = in
		app.stdout = out
	}
}

// New Applicationを作成
func New(opts ...Option) *Application {
	app := &Application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	config, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = config

	if config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	// 2. ロガーの初期化
	if err := logger.InitLoggerWithWriter(config.LogLevel, app.stdout); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()
	app.log.Info("Application started")

	// 3. データファイルを開く
	if err := app.openData(); err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}
	defer app.data.Close()

	// 4. 実行
	if err := app.runGame(); err != nil {
		return fmt.Errorf("game stopped: %w", err)
	}

	app.log.Info("Application terminated normally")
	return nil
}

// openData データファイルを開き、指定された言語を選択する
func (app *Application) openData() error {
	path, err := cli.ResolveDataFile(app.config.DataFile)
	if err != nil {
		return err
	}
	data, err := datafile.Open(path, datafile.WithLogger(logger.Channel(logger.ChannelDataInit)))
	if err != nil {
		return err
	}
	app.data = data

	h := data.Header()
	app.log.Info("Data file opened", "path", path, "version", h.VersionString(),
		"languages", h.NumLanguages(), "globals", h.NumGlobals)

	if app.config.LanguageSet {
		if err := data.SelectLanguage(app.config.Language); err != nil {
			data.Close()
			return err
		}
	}
	return nil
}

// needsLanguageSelection は言語を選ぶ必要があるかを返す
func (app *Application) needsLanguageSelection() bool {
	return !app.config.LanguageSet && app.data.Header().NumLanguages() > 0
}

// startMachine VMとエンジンを作成し、エントリー関数を起動する
func (app *Application) startMachine(speaker vm.Speaker) error {
	table := builtins.Table()
	if names := app.data.BuiltinNames(); len(names) > 0 {
		table.Bind(names)
	}

	saveDir := app.saveDir()
	app.log.Info("Custom data directory", "path", saveDir)

	app.machine = vm.New(app.data, app.data.NumGlobals(),
		vm.WithLogger(logger.Channel(logger.ChannelStackMachine)),
		vm.WithBuiltins(table),
		vm.WithSpeaker(speaker),
		vm.WithSaveDir(saveDir),
	)
	if err := app.machine.Start(); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	app.engine = engine.New(app.machine,
		engine.WithLogger(app.log),
		engine.WithTimeout(app.config.Timeout),
		engine.WithFrameInterval(app.frameInterval()),
	)
	return nil
}

// saveDir カスタムデータの保存先を決める
func (app *Application) saveDir() string {
	if app.config.SaveDir != "" {
		return fileutil.NewSaveDir(app.config.SaveDir).Path()
	}
	name := app.data.Header().DataFolder
	if name == "" {
		base := filepath.Base(app.config.DataFile)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fileutil.DefaultSaveDir(name).Path()
}

// frameInterval はティック間隔（--fps が指定されていればそれを優先）
func (app *Application) frameInterval() time.Duration {
	if app.config.FPS > 0 {
		return time.Second / time.Duration(app.config.FPS)
	}
	return app.data.Header().FrameInterval()
}

func (app *Application) fps() int {
	if app.config.FPS > 0 {
		return app.config.FPS
	}
	return app.data.Header().FPS
}

// runGame 実行モードに応じてゲームを実行
func (app *Application) runGame() error {
	if app.config.Headless || app.config.Console {
		return app.runHeadless()
	}
	return app.runWindow()
}

// selectLanguageHeadless 標準入出力で言語を選択
func (app *Application) selectLanguageHeadless() error {
	if !app.needsLanguageSelection() {
		return nil
	}
	app.log.Info("Multiple languages available, asking for one", "count", app.data.Header().NumLanguages()+1)
	lang, err := window.SelectLanguageHeadless(app.data.Header().Languages, app.config.Timeout, app.stdin, app.stdout)
	if err != nil {
		return fmt.Errorf("failed to select language: %w", err)
	}
	return app.data.SelectLanguage(lang.ID)
}

// runHeadless ウィンドウなしで実行（コンソールモードを含む）
func (app *Application) runHeadless() error {
	if err := app.selectLanguageHeadless(); err != nil {
		return err
	}
	if err := app.startMachine(builtins.NewLogSpeaker()); err != nil {
		return err
	}

	if app.config.Console {
		return app.runConsole()
	}

	app.log.Info("Headless mode: running without a window")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := app.engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		app.log.Info("Interrupted")
		return nil
	}
	return err
}

// runConsole ステップ実行コンソールで実行
func (app *Application) runConsole() error {
	app.engine.Start()

	opts := []console.Option{console.WithOutput(app.stdout)}
	if home, err := os.UserHomeDir(); err == nil {
		opts = append(opts, console.WithHistoryFile(filepath.Join(home, historyFile)))
	}
	return console.New(app.engine, app.machine, opts...).Run()
}

// runWindow GUIモードで実行
func (app *Application) runWindow() error {
	h := app.data.Header()
	opts := []window.Option{
		window.WithSize(h.WinWidth, h.WinHeight),
		window.WithTitle(windowTitle(h)),
	}

	var game *window.Game
	if app.needsLanguageSelection() {
		opts = append(opts, window.WithLanguageSelection(h.Languages, func(l datafile.Language) error {
			if err := app.data.SelectLanguage(l.ID); err != nil {
				return err
			}
			return app.startWindowed(game)
		}))
		game = window.NewGame(opts...)
	} else {
		game = window.NewGame(opts...)
		if err := app.startWindowed(game); err != nil {
			return err
		}
	}

	err := window.Run(game, app.fps())
	if app.engine != nil {
		app.engine.Terminate()
	}
	return err
}

func (app *Application) startWindowed(game *window.Game) error {
	if err := app.startMachine(game); err != nil {
		return err
	}
	app.engine.Start()
	game.SetRunner(app.engine)
	return nil
}

func windowTitle(h *datafile.Header) string {
	if h.Banner == "" {
		return "sludge-vm"
	}
	return "sludge-vm - " + h.Banner
}
