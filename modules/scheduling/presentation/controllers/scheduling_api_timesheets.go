package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

func (c *SchedulingAPIController) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req timesheetRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	entry, err := c.timesheets.CreateTimesheetRecord(r.Context(), tenantID, req.toEntry())
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (c *SchedulingAPIController) CreateTimesheets(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req batchTimesheetsRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	entries := make([]mobilization.TimesheetEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, e.toEntry())
	}
	created, err := c.timesheets.CreateTimesheetRecords(r.Context(), tenantID, entries)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": created})
}

func (c *SchedulingAPIController) UpdateTimesheet(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req patchTimesheetRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	entry, err := c.timesheets.UpdateTimesheet(r.Context(), tenantID, id, services.TimesheetPatch{
		ClockIn:  req.ClockIn,
		ClockOut: req.ClockOut,
		CostCode: req.CostCode,
		PerDiem:  req.PerDiem,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (c *SchedulingAPIController) SummarizeTimesheets(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	jobID, err := uuid.Parse(r.URL.Query().Get("job_id"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "job_id is required")
		return
	}
	summary, err := c.timesheets.SummarizeTimesheets(r.Context(), tenantID, jobID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if summary == nil {
		summary = []services.TimesheetSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "summary": summary})
}
