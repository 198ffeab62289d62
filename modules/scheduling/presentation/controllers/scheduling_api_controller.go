package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
	"github.com/fieldcrew/mobsched/pkg/application"
	"github.com/fieldcrew/mobsched/pkg/middleware"
)

type APIOptions struct {
	TenantHeader  string
	DefaultTenant uuid.UUID
}

type SchedulingAPIController struct {
	app        application.Application
	scheduling *services.SchedulingService
	workflows  *services.WorkflowService
	timesheets *services.TimesheetService
	opts       APIOptions
	apiPrefix  string
}

func NewSchedulingAPIController(app application.Application, opts APIOptions) application.Controller {
	if opts.TenantHeader == "" {
		opts.TenantHeader = "X-Tenant-ID"
	}
	return &SchedulingAPIController{
		app:        app,
		scheduling: app.Service(services.SchedulingService{}).(*services.SchedulingService),
		workflows:  app.Service(services.WorkflowService{}).(*services.WorkflowService),
		timesheets: app.Service(services.TimesheetService{}).(*services.TimesheetService),
		opts:       opts,
		apiPrefix:  "/scheduling/api",
	}
}

func (c *SchedulingAPIController) Key() string {
	return c.apiPrefix
}

func (c *SchedulingAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(middleware.WithTenant(c.opts.TenantHeader, c.opts.DefaultTenant))

	api.HandleFunc("/mobilizations", c.ListMobilizations).Methods(http.MethodGet)
	api.HandleFunc("/mobilizations", c.CreateMobilization).Methods(http.MethodPost)
	api.HandleFunc("/mobilizations/{id}", c.UpdateMobilization).Methods(http.MethodPatch)
	api.HandleFunc("/mobilizations/{id}", c.DeleteMobilization).Methods(http.MethodDelete)
	api.HandleFunc("/mobilizations/{id}/resources", c.AssignResource).Methods(http.MethodPost)
	api.HandleFunc("/mobilizations/{id}/resources:batch", c.AssignResources).Methods(http.MethodPost)
	api.HandleFunc("/mobilizations/{id}/resources/{resource_id}", c.RemoveResource).Methods(http.MethodDelete)

	api.HandleFunc("/overlaps", c.GetOverlaps).Methods(http.MethodPost)
	api.HandleFunc("/crews/{id}", c.SaveCrew).Methods(http.MethodPut)

	api.HandleFunc("/workflows", c.StartWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}", c.GetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}:resolve", c.ResolveWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}:cancel", c.CancelWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id}:retry", c.RetryWorkflow).Methods(http.MethodPost)

	api.HandleFunc("/timesheets", c.CreateTimesheet).Methods(http.MethodPost)
	api.HandleFunc("/timesheets:batch", c.CreateTimesheets).Methods(http.MethodPost)
	api.HandleFunc("/timesheets/summary", c.SummarizeTimesheets).Methods(http.MethodGet)
	api.HandleFunc("/timesheets/{id}", c.UpdateTimesheet).Methods(http.MethodPatch)
}

func (c *SchedulingAPIController) ListMobilizations(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "from must be YYYY-MM-DD or RFC3339")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "to must be YYYY-MM-DD or RFC3339")
		return
	}
	resourceID, err := parseOptionalUUID(q.Get("resource_id"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "invalid resource_id")
		return
	}
	jobID, err := parseOptionalUUID(q.Get("job_id"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "invalid job_id")
		return
	}

	list, err := c.scheduling.ListMobilizations(r.Context(), tenantID, mobilization.ListFilter{
		From:       from,
		To:         to,
		ResourceID: resourceID,
		JobID:      jobID,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if list == nil {
		list = []mobilization.Mobilization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mobilizations": list})
}

func (c *SchedulingAPIController) CreateMobilization(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createMobilizationRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	m, err := c.scheduling.CreateMobilization(r.Context(), tenantID, services.MobilizationInput{
		JobID:   req.JobID,
		GroupID: req.GroupID,
		CrewID:  req.CrewID,
		Status:  req.Status,
		Start:   req.Start,
		End:     req.End,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (c *SchedulingAPIController) UpdateMobilization(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req updateMobilizationRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	m, err := c.scheduling.UpdateMobilization(r.Context(), tenantID, id, services.MobilizationPatch{
		Start:  req.Start,
		End:    req.End,
		Status: req.Status,
		Admin:  req.Admin,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (c *SchedulingAPIController) DeleteMobilization(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	if err := c.scheduling.DeleteMobilization(r.Context(), tenantID, id); err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *SchedulingAPIController) AssignResource(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	mobilizationID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req assignResourceRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	rt, err := mobilization.ParseResourceType(req.ResourceType)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, err.Error())
		return
	}
	res, err := c.scheduling.AssignResourceToMobilization(r.Context(), tenantID, services.AssignResourceInput{
		ResourceID:     req.ResourceID,
		ResourceType:   rt,
		MobilizationID: mobilizationID,
		CrewID:         req.CrewID,
		AllowOverlap:   req.AllowOverlap,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AssignResources answers with the batch result shape on every outcome,
// including failures, which carry status ERROR.
func (c *SchedulingAPIController) AssignResources(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	mobilizationID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req assignResourcesRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	rt, err := mobilization.ParseResourceType(req.ResourceType)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, err.Error())
		return
	}
	res, err := c.scheduling.AssignResourcesToJob(r.Context(), tenantID, services.AssignResourcesInput{
		ResourceIDs:                 req.ResourceIDs,
		ResourceType:                rt,
		MobilizationID:              mobilizationID,
		ResourceCrew:                req.ResourceMap,
		AllowOverlap:                req.AllowOverlap,
		AssignToFutureMobilizations: req.AssignToFutureMobilizations,
		OverlapMode:                 services.OverlapMode(req.OverlapMode),
		SkipMap:                     req.AssignmentsToSkip,
	})
	if err != nil {
		svcErr := services.AsServiceError(err)
		body := batchAssignError{Status: services.StatusError, Code: svcErr.Code, Message: svcErr.Message}
		if requestID != "" {
			body.Meta = map[string]string{"request_id": requestID}
		}
		writeJSON(w, svcErr.Status, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *SchedulingAPIController) RemoveResource(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	mobilizationID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	resourceID, ok := pathUUID(w, r, requestID, "resource_id")
	if !ok {
		return
	}
	q := r.URL.Query()
	var rt mobilization.ResourceType
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		parsed, err := mobilization.ParseResourceType(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, err.Error())
			return
		}
		rt = parsed
	}
	allUpcoming, err := parseOptionalBool(q.Get("all_upcoming"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidQuery, "all_upcoming must be a boolean")
		return
	}

	res, err := c.scheduling.RemoveResourceFromJob(r.Context(), tenantID, services.RemoveResourceInput{
		ResourceID:     resourceID,
		ResourceType:   rt,
		MobilizationID: mobilizationID,
		AllUpcoming:    allUpcoming,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *SchedulingAPIController) GetOverlaps(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req overlapsRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	conflicts, err := c.scheduling.GetMobilizationOverlapConflicts(r.Context(), tenantID, services.OverlapQuery{
		MobilizationID: req.MobilizationID,
		CrewID:         req.CrewID,
		ResourceIDs:    req.ResourceIDs,
		IncludeFuture:  req.IncludeFuture,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if conflicts == nil {
		conflicts = []mobilization.OverlapConflict{}
	}
	writeJSON(w, http.StatusOK, overlapsResponse{Conflicts: conflicts, SkipMap: services.BuildSkipMap(conflicts)})
}

func (c *SchedulingAPIController) SaveCrew(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	crewID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req saveCrewRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	res, err := c.scheduling.SaveCrew(r.Context(), tenantID, services.CrewSaveInput{
		CrewID:                        crewID,
		Name:                          req.Name,
		LeaderID:                      req.LeaderID,
		ClearLeader:                   req.ClearLeader,
		MembersToAdd:                  req.MembersToAdd,
		MembersToRemove:               req.MembersToRemove,
		AssignToFutureMobilizations:   req.AssignToFutureMobilizations,
		RemoveFromFutureMobilizations: req.RemoveFromFutureMobilizations,
		AssignmentsToSkip:             req.AssignmentsToSkip,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
