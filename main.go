package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	memberx "github.com/sorawit/datacrew/agent/agents/member"
	"github.com/sorawit/datacrew/agent/artifact"
	capabilityx "github.com/sorawit/datacrew/agent/capability"
	"github.com/sorawit/datacrew/agent/pipeline"
	statex "github.com/sorawit/datacrew/agent/state"
	configx "github.com/sorawit/datacrew/pkg/config"
	_ "github.com/sorawit/datacrew/pkg/logger/autoload"
	ollamax "github.com/sorawit/datacrew/pkg/ollama"
)

type AppConfig struct {
	BaseDir     string `envconfig:"BASE_DIR" split_words:"true" default:"."`
	DataDir     string `envconfig:"DATA_DIR" split_words:"true" default:"data"`
	PlotsDir    string `envconfig:"PLOTS_DIR" split_words:"true" default:"plots"`
	ReportsDir  string `envconfig:"REPORTS_DIR" split_words:"true" default:"reports"`
	CacheDir    string `envconfig:"CACHE_DIR" split_words:"true" default:"cache"`
	SessionID   string `envconfig:"SESSION_ID" split_words:"true"`
	PlanFile    string `envconfig:"PLAN_FILE" split_words:"true"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" split_words:"true"`
}

func main() {
	ctx := context.Background()
	cfg := configx.MustNew[AppConfig]("DATACREW")

	dataDir := filepath.Join(cfg.BaseDir, cfg.DataDir)
	plotsDir := filepath.Join(cfg.BaseDir, cfg.PlotsDir)
	reportsDir := filepath.Join(cfg.BaseDir, cfg.ReportsDir)
	cacheDir := filepath.Join(cfg.BaseDir, cfg.CacheDir)
	for _, dir := range []string{dataDir, plotsDir, reportsDir, cacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("create directory")
		}
		log.Info().Str("dir", dir).Msg("directory ready")
	}

	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	store := buildStore(ctx, cfg.PostgresDSN)

	var narrator capabilityx.Narrator
	if ollamaCfg := configx.MustNew[ollamax.Config]("OLLAMA"); ollamaCfg.Enabled() {
		client, err := ollamax.NewClient(*ollamaCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build ollama client")
		}
		narrator = client
		log.Info().Str("model", ollamaCfg.Model).Msg("report narrator enabled")
	}

	frames := capabilityx.NewFrames()
	catalog, err := capabilityx.NewCatalog(capabilityx.Deps{
		DataDir:  dataDir,
		PlotsDir: plotsDir,
		BaseDir:  cfg.BaseDir,
		Frames:   frames,
		Narrator: narrator,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build capability catalog")
	}

	crew, err := memberx.NewCrew(catalog, frames, memberx.CrewConfig{
		SessionID: sessionID,
		Store:     store,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build crew")
	}

	plan := pipeline.DefaultPlan()
	if cfg.PlanFile != "" {
		plan, err = pipeline.LoadPlan(cfg.PlanFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.PlanFile).Msg("load plan")
		}
	}

	orchestrator, err := pipeline.New(plan, crew, artifact.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	log.Info().
		Str("session_id", sessionID).
		Int("phases", len(plan.Phases)).
		Msg("pipeline starting")

	summary, err := orchestrator.Execute(ctx)
	if err != nil {
		// Artifacts produced before the failure stay on disk and in the
		// registry for inspection.
		for _, a := range orchestrator.Registry().All() {
			log.Info().
				Str("artifact", a.Name).
				Str("kind", string(a.Kind)).
				Int("phase", a.Phase).
				Str("location", a.Location).
				Msg("artifact produced before failure")
		}
		log.Fatal().Err(err).Msg("pipeline failed")
	}

	log.Info().Str("run_id", summary.RunID).Msg("pipeline complete")
	os.Stdout.WriteString(summary.Render())
}

func buildStore(ctx context.Context, dsn string) statex.Store {
	if strings.TrimSpace(dsn) == "" {
		log.Info().Msg("no postgres dsn configured, using in-memory session store")
		return statex.NewMemoryStore()
	}
	store, err := statex.NewPostgresStore(statex.PostgresConfig{DSN: dsn})
	if err != nil {
		log.Fatal().Err(err).Msg("build postgres session store")
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate session store")
	}
	log.Info().Msg("postgres session store ready")
	return store
}
