package app

import (
	"strings"
	"time"

	"github.com/asterlab/mission-gateway/internal/clients/ci"
	"github.com/asterlab/mission-gateway/internal/clients/compute"
	"github.com/asterlab/mission-gateway/internal/platform/envutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type Config struct {
	Port           string
	JWTSecretKey   string
	WebhookSecret  string
	ExecutionVenue string
	CORSOrigins    []string

	CI      ci.Config
	Backend compute.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.GetEnv("PORT", "8080", log),
		JWTSecretKey:   envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		WebhookSecret:  envutil.GetEnv("WEBHOOK_SECRET", "", log),
		ExecutionVenue: envutil.GetEnv("EXECUTION_VENUE", "default", log),
		CI: ci.Config{
			BaseURL:      envutil.GetEnv("CI_BASE_URL", "", log),
			TriggerToken: envutil.GetEnv("CI_TRIGGER_TOKEN", "", log),
			AccessToken:  envutil.GetEnv("CI_ACCESS_TOKEN", "", log),
			Timeout:      envutil.GetEnvAsDuration("CI_TIMEOUT", 30*time.Second, log),
			Targets: map[ci.Kind]ci.Target{
				ci.KindProcessDeploy: {
					ProjectID: envutil.GetEnv("CI_DEPLOY_PROJECT_ID", "", log),
					Ref:       envutil.GetEnv("CI_DEPLOY_REF", "main", log),
				},
				ci.KindBuild: {
					ProjectID: envutil.GetEnv("CI_BUILD_PROJECT_ID", "", log),
					Ref:       envutil.GetEnv("CI_BUILD_REF", "main", log),
				},
			},
		},
		Backend: compute.Config{
			BaseURL:  envutil.GetEnv("COMPUTE_BASE_URL", "", log),
			APIKey:   envutil.GetEnv("COMPUTE_API_KEY", "", log),
			Timeout:  envutil.GetEnvAsDuration("COMPUTE_TIMEOUT", 30*time.Second, log),
			CacheTTL: envutil.GetEnvAsDuration("COMPUTE_CACHE_TTL", 30*time.Second, log),
		},
	}
	if raw := envutil.GetEnv("CORS_ORIGINS", "", log); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	return cfg
}
