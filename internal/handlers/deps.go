package handlers

import (
	"github.com/mkrutov/logfetch/internal/activity"
	"github.com/mkrutov/logfetch/internal/fetcher"
	"github.com/mkrutov/logfetch/internal/registry"
)

// Shared collaborators, set once from main before the server starts.
var (
	Reg     *registry.Registry
	Svc     *fetcher.Service
	Auditor *activity.Auditor
)
