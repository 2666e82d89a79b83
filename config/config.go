package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "1.0.0"

type Config struct {
	Bind           string
	Port           int
	DBPath         string
	ConfigFile     string
	SessionSecret  string
	Countdown      time.Duration
	StrictProgress bool
	ServerClock    bool
	CreateLimit    int
	JoinLimit      int
	Verbose        bool
	Texts          map[int][]string
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("--db must not be empty")
	}
	if c.Countdown <= 0 {
		return fmt.Errorf("invalid countdown: %s", c.Countdown)
	}
	if c.CreateLimit < 0 || c.JoinLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	if len(c.Texts) == 0 {
		return errors.New("no race texts configured")
	}
	return nil
}

// NewCommand builds the root command. Flags can also be set through
// TYPERACE_* environment variables or a config file, which is also where a
// custom text pool lives.
func NewCommand(run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	cfg := &Config{}
	v := viper.New()
	v.SetEnvPrefix("TYPERACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "typerace",
		Short:   "A multiplayer typing race server.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(v, cfg); err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: TYPERACE_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: TYPERACE_PORT)")
	fs.StringVar(&cfg.DBPath, "db", "./typerace.db", "path to the SQLite database (env: TYPERACE_DB)")
	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "config file with a custom text pool (env: TYPERACE_CONFIG)")
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "key for signing session cookies, random if empty (env: TYPERACE_SESSION_SECRET)")
	fs.DurationVar(&cfg.Countdown, "countdown", 3*time.Second, "delay between start and the race going live (env: TYPERACE_COUNTDOWN)")
	fs.BoolVar(&cfg.StrictProgress, "strict-progress", true, "reject progress updates that move backwards (env: TYPERACE_STRICT_PROGRESS)")
	fs.BoolVar(&cfg.ServerClock, "server-clock", true, "advance and finish races on server timers (env: TYPERACE_SERVER_CLOCK)")
	fs.IntVar(&cfg.CreateLimit, "create-limit", 10, "rooms one IP may create per minute, 0 disables (env: TYPERACE_CREATE_LIMIT)")
	fs.IntVar(&cfg.JoinLimit, "join-limit", 30, "joins one IP may make per minute, 0 disables (env: TYPERACE_JOIN_LIMIT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display debug output (env: TYPERACE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("typerace v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func load(v *viper.Viper, cfg *Config) error {
	cfg.Texts = DefaultTexts()

	if cfg.ConfigFile != "" {
		v.SetConfigFile(cfg.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		if v.IsSet("texts") {
			texts, err := parseTexts(v)
			if err != nil {
				return err
			}
			cfg.Texts = texts
		}
	}

	if cfg.SessionSecret == "" {
		secret, err := generateSessionSecret()
		if err != nil {
			return err
		}
		cfg.SessionSecret = secret
	}
	return nil
}

func parseTexts(v *viper.Viper) (map[int][]string, error) {
	var raw map[string][]string
	if err := v.UnmarshalKey("texts", &raw); err != nil {
		return nil, fmt.Errorf("failed to parse texts: %w", err)
	}

	texts := make(map[int][]string, len(raw))
	for key, list := range raw {
		tier, err := strconv.Atoi(key)
		if err != nil || tier <= 0 {
			return nil, fmt.Errorf("invalid text tier %q: must be a duration in seconds", key)
		}
		texts[tier] = list
	}
	return texts, nil
}

func generateSessionSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}
