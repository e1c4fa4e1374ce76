// Package configs provides embedded configuration templates for facet.
//
// Templates are embedded at build time using Go's //go:embed directive,
// so they ship inside the binary regardless of how it was installed.
//
// The templates are used by:
//   - cmd/facet/cmd/config.go → creates user config at ~/.config/facet/config.yaml
//   - cmd/facet/cmd/config.go → creates .facet.yaml in the project root
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/facet/config.yaml)
//  3. Project config (.facet.yaml)
//  4. Environment variables (FACET_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `facet config init` at ~/.config/facet/config.yaml. Holds
// machine-specific settings that apply to every project on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by `facet config init --project` as .facet.yaml in the project
// root. Holds settings that are version-controlled with the project, such
// as path excludes and enabled indexes.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
