package handler

import (
	"relayhub/internal/app/hub"
	"relayhub/internal/configs"
)

// AppDeps bundles the long-lived collaborators shared by all HTTP handlers.
type AppDeps struct {
	Registry *hub.Registry
	Config   *configs.AppConfig
}
