// Package window drives the machine from an Ebitengine game loop and shows
// dialogue lines in a plain text overlay.
package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/zurustar/sludge-vm/pkg/builtins"
	"github.com/zurustar/sludge-vm/pkg/datafile"
	"github.com/zurustar/sludge-vm/pkg/engine"
	"github.com/zurustar/sludge-vm/pkg/logger"
	"golang.org/x/image/font/basicfont"
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 選択中・思考中のテキスト色（黄色）
	selectedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const lineHeight = 16

// Mode はウィンドウの表示モードを表す
type Mode int

const (
	ModeSelection Mode = iota // 言語選択画面
	ModeRunning               // ゲーム実行中
)

// Runner is the scheduler driven once per frame.
type Runner interface {
	Update() error
	Terminate()
	Ticks() uint64
}

// Line is one dialogue line on screen.
type Line struct {
	ObjType int32
	Text    string
	Think   bool
}

// Game はEbitengineのゲームインターフェースとvm.Speakerを実装する
type Game struct {
	mode          Mode
	width         int
	height        int
	title         string
	languages     []datafile.Language
	selectedIndex int
	selected      *datafile.Language

	runner Runner
	lines  []Line

	onLanguageSelected func(datafile.Language) error
	transitionError    error
	runErr             error

	log *slog.Logger
	mu  sync.RWMutex
}

// Option configures a Game.
type Option func(*Game)

// WithSize sets the logical screen size.
func WithSize(width, height int) Option {
	return func(g *Game) {
		if width > 0 && height > 0 {
			g.width, g.height = width, height
		}
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(g *Game) {
		g.title = title
	}
}

// WithLanguageSelection starts the game on a language selection screen.
// onSelected is called with the chosen language and must set the runner.
func WithLanguageSelection(languages []datafile.Language, onSelected func(datafile.Language) error) Option {
	return func(g *Game) {
		g.languages = languages
		g.onLanguageSelected = onSelected
		if len(languages) > 0 {
			g.mode = ModeSelection
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Game) {
		g.log = log
	}
}

// NewGame Gameを作成
func NewGame(opts ...Option) *Game {
	g := &Game{
		mode:   ModeRunning,
		width:  640,
		height: 480,
		title:  "sludge-vm",
		log:    logger.Channel(logger.ChannelScript),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetRunner sets the scheduler driven by Update.
func (g *Game) SetRunner(r Runner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runner = r
}

// Mode returns the current display mode.
func (g *Game) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// Selected returns the language picked on the selection screen, or nil.
func (g *Game) Selected() *datafile.Language {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selected
}

// Err returns the error that ended the run, if any.
func (g *Game) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.transitionError != nil {
		return g.transitionError
	}
	return g.runErr
}

// Say shows a dialogue line and returns how long the speaker waits.
func (g *Game) Say(objType int32, text string, think bool) int {
	g.mu.Lock()
	g.lines = append(g.lines, Line{ObjType: objType, Text: text, Think: think})
	g.mu.Unlock()
	g.log.Debug("speech", "object", objType, "text", text, "think", think)
	return builtins.SpeechTicks(text)
}

// KillSpeech removes every line on screen.
func (g *Game) KillSpeech() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines = nil
}

// Lines returns the dialogue lines on screen, oldest first.
func (g *Game) Lines() []Line {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Line, len(g.lines))
	copy(out, g.lines)
	return out
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	switch g.Mode() {
	case ModeSelection:
		return g.updateSelection()
	case ModeRunning:
		return g.updateRunning()
	}
	return nil
}

// updateSelection 言語選択画面の更新
func (g *Game) updateSelection() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		g.moveSelection(-1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		g.moveSelection(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		return g.confirmSelection()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) moveSelection(delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.selectedIndex + delta
	if i >= 0 && i < len(g.languages) {
		g.selectedIndex = i
	}
}

// confirmSelection はコールバックでVMを準備し、実行モードに遷移する
func (g *Game) confirmSelection() error {
	g.mu.Lock()
	if g.selectedIndex >= len(g.languages) {
		g.mu.Unlock()
		return nil
	}
	lang := g.languages[g.selectedIndex]
	g.selected = &lang
	callback := g.onLanguageSelected
	g.mu.Unlock()

	if callback != nil {
		if err := callback(lang); err != nil {
			g.mu.Lock()
			g.transitionError = err
			g.mu.Unlock()
			return ebiten.Termination
		}
	}

	g.mu.Lock()
	g.mode = ModeRunning
	g.mu.Unlock()
	g.log.Info("Language selected", "id", lang.ID, "name", lang.Name)
	return nil
}

// updateRunning はEscキーの処理後、スケジューラを1ティック進める
func (g *Game) updateRunning() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.mu.RLock()
		r := g.runner
		g.mu.RUnlock()
		if r != nil {
			r.Terminate()
		}
		return ebiten.Termination
	}
	return g.step()
}

func (g *Game) step() error {
	g.mu.RLock()
	r := g.runner
	g.mu.RUnlock()
	if r == nil {
		return nil
	}

	err := r.Update()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrTerminated):
		return ebiten.Termination
	default:
		g.mu.Lock()
		g.runErr = err
		g.mu.Unlock()
		return ebiten.Termination
	}
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)

	switch g.Mode() {
	case ModeSelection:
		g.drawSelection(screen)
	case ModeRunning:
		g.drawRunning(screen)
	}
}

// drawSelection 言語選択画面の描画
func (g *Game) drawSelection(screen *ebiten.Image) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	drawText(screen, "Select a language", 20, 30, textColor)
	for i, l := range g.languages {
		prefix := "  "
		c := color.Color(textColor)
		if i == g.selectedIndex {
			prefix = "> "
			c = selectedTextColor
		}
		drawText(screen, prefix+languageLabel(l), 30, float64(60+i*lineHeight*2), c)
	}
	drawText(screen, "Use UP/DOWN to select, ENTER to confirm, ESC to exit", 20, float64(g.height-30), textColor)
}

// drawRunning はセリフと状態行を描画する
func (g *Game) drawRunning(screen *ebiten.Image) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for i, l := range g.lines {
		c := color.Color(textColor)
		if l.Think {
			c = selectedTextColor
		}
		drawText(screen, FormatLine(l), 20, float64(20+i*lineHeight), c)
	}
	if g.runner != nil {
		status := fmt.Sprintf("tick %d", g.runner.Ticks())
		drawText(screen, status, 20, float64(g.height-lineHeight-4), textColor)
	}
}

func drawText(screen *ebiten.Image, s string, x, y float64, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, s, defaultFace, op)
}

// FormatLine renders a dialogue line as shown on screen.
func FormatLine(l Line) string {
	if l.Think {
		return fmt.Sprintf("%d: (%s)", l.ObjType, l.Text)
	}
	return fmt.Sprintf("%d: %s", l.ObjType, l.Text)
}

func languageLabel(l datafile.Language) string {
	if l.Name == "" {
		return fmt.Sprintf("language %d", l.ID)
	}
	return l.Name
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

// SelectLanguageHeadless ヘッドレスモードで言語選択を実行
func SelectLanguageHeadless(languages []datafile.Language, timeout time.Duration, reader io.Reader, writer io.Writer) (*datafile.Language, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("no languages")
	}
	// 言語が1つの場合は自動選択
	if len(languages) == 1 {
		fmt.Fprintf(writer, "Auto-selecting language: %s\n", languageLabel(languages[0]))
		return &languages[0], nil
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fmt.Fprintln(writer, "Available languages:")
	for i, l := range languages {
		fmt.Fprintf(writer, "  %d: %s\n", i+1, languageLabel(l))
	}
	fmt.Fprintln(writer)

	scanner := bufio.NewScanner(reader)
	resultCh := make(chan *datafile.Language, 1)
	errCh := make(chan error, 1)

	go func() {
		for {
			fmt.Fprint(writer, "Select a language (1-", len(languages), ") or 'q' to quit: ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					errCh <- fmt.Errorf("failed to read input: %w", err)
				} else {
					errCh <- fmt.Errorf("input closed")
				}
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "q" || input == "Q" {
				errCh <- fmt.Errorf("user cancelled")
				return
			}

			num, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintln(writer, "Invalid input. Please enter a number.")
				continue
			}
			if num < 1 || num > len(languages) {
				fmt.Fprintf(writer, "Invalid selection. Please enter a number between 1 and %d.\n", len(languages))
				continue
			}

			selected := &languages[num-1]
			fmt.Fprintf(writer, "Selected: %s\n", languageLabel(*selected))
			resultCh <- selected
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout")
	case err := <-errCh:
		return nil, err
	case selected := <-resultCh:
		return selected, nil
	}
}

// Run GUIモードでウィンドウを実行
// tps は1秒あたりのティック数（データファイルのフレームレート）
func Run(g *Game, tps int) error {
	ebiten.SetWindowSize(g.width, g.height)
	ebiten.SetWindowTitle(g.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if tps > 0 {
		ebiten.SetTPS(tps)
	}

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return g.Err()
}
