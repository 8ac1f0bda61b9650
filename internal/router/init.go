package router

import (
	"github.com/turnlabs/authgate/internal/application"
	"github.com/turnlabs/authgate/internal/container"
	pginfra "github.com/turnlabs/authgate/internal/infrastructure/postgres"
	handlers "github.com/turnlabs/authgate/internal/interface/http"
	"github.com/turnlabs/authgate/internal/router/modules"
)

func buildAuthModule() *modules.AuthModule {
	cfg := container.GetConfig()
	repo := pginfra.NewProfileRepository(container.GetPGPool())

	service := application.NewService(
		repo,
		container.GetProvider(),
		container.GetLogger(),
		container.GetRabbitPub(),
		container.GetES(),
		cfg.ESProfilesIndex,
		cfg.MailSendEnabled,
	)

	handler := handlers.NewAuthHandler(service, container.GetLogger())
	return modules.NewAuthModule(handler)
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	r.Add(buildAuthModule())
}
