package cli

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// DefaultHeader is the first line written by copy; watch skips clipboard
// text that starts with it.
const DefaultHeader = "# Relevant Code"

// LocalConfigFile is read from the working directory before the user config.
const LocalConfigFile = ".snippy.toml"

var envKeyReplacer = strings.NewReplacer("-", "_")

// CopyConfig holds the copy command settings.
type CopyConfig struct {
	Paths      []string
	NoMarkdown bool
	LineNumber int
	Prefix     string
	Header     string
	XML        bool
	Ignore     []string
	NoStats    bool
	Stdout     bool
}

// FormatOptions converts the flags into formatter options.
func (c *CopyConfig) FormatOptions() model.FormatOptions {
	opts := model.FormatOptions{
		UseMarkdownFences: !c.NoMarkdown,
		LineNumberStart:   c.LineNumber,
		Header:            c.Header,
		Style:             model.StyleMarkdown,
	}
	if c.LineNumber > 0 {
		opts.LinePrefix = c.Prefix
	}
	if c.XML {
		opts.Style = model.StyleXML
	}
	return opts
}

// TargetConfig is shared by every command that writes clipboard content to
// disk.
type TargetConfig struct {
	Base        string
	Ignore      []string
	NoOverwrite bool
	FirstWins   bool
	Nvim        string
	NoJournal   bool
}

// WatchConfig holds the watch command settings.
type WatchConfig struct {
	TargetConfig
	Interval        time.Duration
	Header          string
	SkipInitial     bool
	Once            bool
	NoTUI           bool
	MaxReadFailures int
}

// UndoConfig holds the undo command settings.
type UndoConfig struct {
	Base  string
	Force bool
}

// LogConfig holds the logging flags every command accepts.
type LogConfig struct {
	Format string
	Level  string
}

// AddCopyFlags defines the copy flags.
func AddCopyFlags(f *pflag.FlagSet) {
	f.BoolP("no-markdown", "m", false, "Do not wrap file contents in markdown fences.")
	f.IntP("line-number", "l", 0, "Prefix every line with its number, starting at N (0 disables).")
	f.StringP("prefix", "p", "|", "Separator between line number and line text.")
	f.String("header", DefaultHeader, "First line of the copied text (empty disables).")
	f.Bool("xml", false, "Wrap files in <file> elements instead of markdown.")
	f.StringSlice("ignore", nil, "Additional doublestar ignore pattern (repeatable).")
	f.BoolP("no-stats", "s", false, "Do not print the per-file statistics table.")
	f.Bool("stdout", false, "Print the text instead of writing it to the clipboard.")
}

// AddTargetFlags defines the flags of commands that write files.
func AddTargetFlags(f *pflag.FlagSet) {
	f.StringSlice("ignore", nil, "Doublestar pattern of paths that must not be written (repeatable).")
	f.Bool("no-overwrite", false, "Never replace existing files.")
	f.Bool("first-wins", false, "Keep the first block when a path appears twice (default: last wins).")
	f.String("nvim", "", "Neovim socket to reload buffers in (default $NVIM_LISTEN_ADDRESS).")
	f.Bool("no-journal", false, "Do not record batches for undo.")
}

// AddWatchFlags defines the watch flags, including the target flags.
func AddWatchFlags(f *pflag.FlagSet) {
	AddTargetFlags(f)
	f.DurationP("interval", "i", time.Second, "Clipboard polling interval.")
	f.String("header", DefaultHeader, "Skip clipboard text starting with this line (text put there by copy).")
	f.Bool("skip-initial", false, "Do not apply the clipboard content present at start.")
	f.Bool("once", false, "Read the clipboard once, apply it and exit.")
	f.Bool("no-tui", false, "Print plain result lines instead of the interactive view.")
	f.Int("max-read-failures", 0, "Exit after this many consecutive clipboard read failures (0 never exits).")
}

// AddUndoFlags defines the undo flags.
func AddUndoFlags(f *pflag.FlagSet) {
	f.Bool("force", false, "Revert even files changed since they were written.")
}

// AddCommonFlags defines the flags every command accepts.
func AddCommonFlags(f *pflag.FlagSet) {
	f.String("config", "", "Path to config file (overrides auto-discovery).")
	f.String("log-format", "auto", "Log format: auto|text|json.")
	f.String("log-level", "", "Log level: debug|info|warn|error (default: warn).")
}

// Bind wires a command's flags into v with the config file search order and
// the SNIPPY_* env var prefix.
//
// Precedence (lowest to highest): defaults, config file, SNIPPY_* env vars, flags.
func Bind(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	switch {
	case configFlag != "":
		v.SetConfigFile(configFlag)
	case fileExists(LocalConfigFile):
		v.SetConfigFile(LocalConfigFile)
	default:
		v.SetConfigName("snippy")
		v.SetConfigType("toml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "snippy"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("SNIPPY")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Errorf("binding flags: %w", err)
	}
	return nil
}

// Copy reads the copy settings from v.
func Copy(v *viper.Viper, args []string) (*CopyConfig, error) {
	cfg := &CopyConfig{
		Paths:      args,
		NoMarkdown: v.GetBool("no-markdown"),
		LineNumber: v.GetInt("line-number"),
		Prefix:     v.GetString("prefix"),
		Header:     v.GetString("header"),
		XML:        v.GetBool("xml"),
		Ignore:     v.GetStringSlice("ignore"),
		NoStats:    v.GetBool("no-stats"),
		Stdout:     v.GetBool("stdout"),
	}
	if cfg.LineNumber < 0 {
		return nil, errors.Errorf("--line-number must not be negative, got %d", cfg.LineNumber)
	}
	return cfg, nil
}

// Target reads the shared write settings from v. base is the optional
// directory argument.
func Target(v *viper.Viper, args []string) TargetConfig {
	base := "."
	if len(args) > 0 {
		base = args[0]
	}
	return TargetConfig{
		Base:        base,
		Ignore:      v.GetStringSlice("ignore"),
		NoOverwrite: v.GetBool("no-overwrite"),
		FirstWins:   v.GetBool("first-wins"),
		Nvim:        v.GetString("nvim"),
		NoJournal:   v.GetBool("no-journal"),
	}
}

// Watch reads the watch settings from v.
func Watch(v *viper.Viper, args []string) (*WatchConfig, error) {
	cfg := &WatchConfig{
		TargetConfig:    Target(v, args),
		Interval:        v.GetDuration("interval"),
		Header:          v.GetString("header"),
		SkipInitial:     v.GetBool("skip-initial"),
		Once:            v.GetBool("once"),
		NoTUI:           v.GetBool("no-tui"),
		MaxReadFailures: v.GetInt("max-read-failures"),
	}
	if cfg.Interval <= 0 {
		return nil, errors.Errorf("--interval must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxReadFailures < 0 {
		return nil, errors.Errorf("--max-read-failures must not be negative, got %d", cfg.MaxReadFailures)
	}
	return cfg, nil
}

// Undo reads the undo settings from v.
func Undo(v *viper.Viper, args []string) *UndoConfig {
	base := "."
	if len(args) > 0 {
		base = args[0]
	}
	return &UndoConfig{Base: base, Force: v.GetBool("force")}
}

// Log reads the logging settings from v.
func Log(v *viper.Viper) LogConfig {
	return LogConfig{Format: v.GetString("log-format"), Level: v.GetString("log-level")}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
