package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/VinayDangodra28/botbuddy"
	"github.com/VinayDangodra28/botbuddy/internal/logging"
	"github.com/VinayDangodra28/botbuddy/pkg/adapters/file"
	"github.com/VinayDangodra28/botbuddy/pkg/adapters/genai"
	"github.com/VinayDangodra28/botbuddy/pkg/adapters/memory"
	"github.com/VinayDangodra28/botbuddy/pkg/adapters/redis"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

// configFile is the optional project config, read from <dir>/botbuddy.yaml.
const configFile = "botbuddy.yaml"

// Config is the project configuration. Everything has a workable default;
// flags override file values.
type Config struct {
	Flow  string `mapstructure:"flow"`
	Store string `mapstructure:"store"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Gemini struct {
		Model       string  `mapstructure:"model"`
		Temperature float32 `mapstructure:"temperature"`
	} `mapstructure:"gemini"`

	Profile map[string]string `mapstructure:"profile"`
}

// loadConfig reads <dir>/botbuddy.yaml when present. The file is decoded
// loosely first, then mapped onto the struct, so unknown keys are ignored
// rather than rejected.
func loadConfig(dir string) (Config, error) {
	cfg := Config{
		Flow:  "flow.yaml",
		Store: "memory",
	}
	cfg.Redis.Addr = "localhost:6379"

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// projectSetup is everything a command needs to stand up the engine.
type projectSetup struct {
	dir      string
	flowPath string
	cfg      Config
	logger   *slog.Logger
}

func setupProject(cmd *cobra.Command) (*projectSetup, error) {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}

	flowPath, _ := cmd.Flags().GetString("flow")
	if flowPath == "" {
		flowPath = filepath.Join(dir, cfg.Flow)
	}

	logger := logging.NewNop()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logger = logging.New(slog.LevelDebug)
	}

	return &projectSetup{dir: dir, flowPath: flowPath, cfg: cfg, logger: logger}, nil
}

// sessionStore builds the configured session store. The returned closer is a
// no-op for stores without a connection to release.
func (p *projectSetup) sessionStore() (ports.SessionStore, func(), error) {
	switch p.cfg.Store {
	case "", "memory":
		return memory.NewStore(), func() {}, nil
	case "file":
		return file.NewStore(filepath.Join(p.dir, ".botbuddy", "sessions")), func() {}, nil
	case "redis":
		store := redis.New(p.cfg.Redis.Addr, p.cfg.Redis.Password, p.cfg.Redis.DB)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (supported: memory, file, redis)", p.cfg.Store)
	}
}

// engineOptions assembles the shared wiring: store, journal, profile, and a
// Gemini generator when GEMINI_API_KEY is set.
func (p *projectSetup) engineOptions(cmd *cobra.Command) ([]botbuddy.Option, func(), error) {
	store, closeStore, err := p.sessionStore()
	if err != nil {
		return nil, nil, err
	}

	opts := []botbuddy.Option{
		botbuddy.WithLogger(p.logger),
		botbuddy.WithSessionStore(store),
		botbuddy.WithSuggestionJournal(file.NewJournal(filepath.Join(p.dir, ".botbuddy", "suggestions.json"))),
	}
	if len(p.cfg.Profile) > 0 {
		opts = append(opts, botbuddy.WithProfileProvider(ports.StaticProfile(p.cfg.Profile)))
	}

	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		genOpts := []genai.Option{}
		if p.cfg.Gemini.Model != "" {
			genOpts = append(genOpts, genai.WithModel(p.cfg.Gemini.Model))
		}
		if p.cfg.Gemini.Temperature > 0 {
			genOpts = append(genOpts, genai.WithTemperature(p.cfg.Gemini.Temperature))
		}
		gen, err := genai.New(cmd.Context(), apiKey, genOpts...)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to set up gemini: %w", err)
		}
		opts = append(opts, botbuddy.WithGenerator(gen))
	}

	// Redis deployments get a distributed session lock on the same client.
	if rs, ok := store.(*redis.Store); ok {
		opts = append(opts, botbuddy.WithLocker(redis.NewLocker(rs.Client(), "botbuddy:lock:")))
	}

	return opts, closeStore, nil
}

// newEngine builds the engine from the flow file and the shared options.
func (p *projectSetup) newEngine(cmd *cobra.Command, extra ...botbuddy.Option) (*botbuddy.Engine, func(), error) {
	opts, closeStore, err := p.engineOptions(cmd)
	if err != nil {
		return nil, nil, err
	}
	eng, err := botbuddy.New(file.NewSource(p.flowPath), append(opts, extra...)...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return eng, closeStore, nil
}

// loadFlow reads just the flow document, for commands that do not need a
// full engine.
func (p *projectSetup) loadFlow() (*domain.Document, error) {
	return file.NewSource(p.flowPath).Load()
}
