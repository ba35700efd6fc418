package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/farxc/household-migrator/internal/auth"
	"github.com/farxc/household-migrator/internal/migration"
	"github.com/farxc/household-migrator/internal/response"
	"github.com/farxc/household-migrator/internal/store"
)

type RunMigrationResponse = response.ResultsResponse[*migration.Summary]
type GetMigrationHistoryResponse = response.APIResponse[[]store.MigrationRun]

// @Summary		Run migration
// @Description	Copies every legacy household and finance document into the relational tables.
// @Tags			Migrations
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	RunMigrationResponse	"Migration finished, possibly with per-record errors"
// @Failure		401	{object}	response.ErrorResponse	"Missing or invalid session"
// @Failure		403	{object}	response.ErrorResponse	"Caller is not allowed to run migrations"
// @Failure		409	{object}	response.ErrorResponse	"A migration is already running"
// @Failure		500	{object}	response.ErrorResponse	"Source store could not be read"
// @Router			/migrations [post]
func (app *application) handleRunMigration(w http.ResponseWriter, r *http.Request) {
	if !app.runMu.TryLock() {
		writeJSONError(w, http.StatusConflict, "a migration is already running")
		return
	}
	defer app.runMu.Unlock()

	opts := migration.RunOptions{Trigger: store.TriggerTypeAPI}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		opts.TriggeredBy = claims.Subject
	}

	// A dropped connection must not abandon a half-finished run.
	ctx := context.WithoutCancel(r.Context())

	summary, err := app.runner.Run(ctx, opts)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, &RunMigrationResponse{Results: summary}); err != nil {
		app.logger.Error(component, "Failed to write migration response: error=%v", err)
	}
}

// @Summary		Get migration history
// @Description	Get a list of the latest migration runs.
// @Tags			Migrations
// @Produce		json
// @Security		BearerAuth
// @Param			limit	query		int								false	"Limit the number of results"	default(10)
// @Success		200		{object}	GetMigrationHistoryResponse	"Successfully retrieved latest migration runs"
// @Failure		401		{object}	response.ErrorResponse			"Missing or invalid session"
// @Failure		500		{object}	response.ErrorResponse			"Failed to get migration history"
// @Router			/migrations/history [get]
func (app *application) handleGetMigrationHistory(w http.ResponseWriter, r *http.Request) {
	limitParam := r.URL.Query().Get("limit")
	limit := 10
	if limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}

	data, err := app.store.MigrationRuns.GetLatest(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get migration history: "+err.Error())
		return
	}

	response := &GetMigrationHistoryResponse{
		Success: true,
		Data:    data,
		Message: "Successfully retrieved latest migration runs",
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
