package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fieldcrew/mobsched/modules/scheduling/domain/mobilization"
	"github.com/fieldcrew/mobsched/modules/scheduling/services"
	"github.com/fieldcrew/mobsched/pkg/httpapi"
)

// workflowErrorResponse is the error envelope plus the stored session, so a
// client can show the failed save and offer retry.
type workflowErrorResponse struct {
	httpapi.ErrorEnvelope
	Workflow *services.WorkflowState `json:"workflow,omitempty"`
}

func writeWorkflow(w http.ResponseWriter, requestID string, status int, state services.WorkflowState, err error) {
	if err == nil {
		writeJSON(w, status, state)
		return
	}
	svcErr := services.AsServiceError(err)
	body := workflowErrorResponse{ErrorEnvelope: httpapi.ErrorEnvelope{Code: svcErr.Code, Message: svcErr.Message}}
	if requestID != "" {
		body.Meta = map[string]string{"request_id": requestID}
	}
	if state.ID != uuid.Nil {
		body.Workflow = &state
	}
	writeJSON(w, svcErr.Status, body)
}

func (c *SchedulingAPIController) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req startWorkflowRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	save := services.SaveRequest{
		Kind:            services.FlowKind(req.Kind),
		TargetID:        req.TargetID,
		MembersToAdd:    req.MembersToAdd,
		MembersToRemove: req.MembersToRemove,
		ResourceCrew:    req.ResourceMap,
		AllowOverlap:    req.AllowOverlap,
		CrewName:        req.CrewName,
		LeaderID:        req.LeaderID,
		ClearLeader:     req.ClearLeader,
	}
	if save.Kind == services.FlowAssignResources {
		rt, err := mobilization.ParseResourceType(req.ResourceType)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, codeInvalidBody, err.Error())
			return
		}
		save.ResourceType = rt
	}

	state, err := c.workflows.Start(r.Context(), tenantID, save)
	writeWorkflow(w, requestID, http.StatusCreated, state, err)
}

func (c *SchedulingAPIController) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	state, err := c.workflows.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (c *SchedulingAPIController) ResolveWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req resolveWorkflowRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	state, err := c.workflows.Resolve(r.Context(), tenantID, id, services.Decision(req.Decision))
	writeWorkflow(w, requestID, http.StatusOK, state, err)
}

func (c *SchedulingAPIController) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	state, err := c.workflows.Cancel(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (c *SchedulingAPIController) RetryWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	state, err := c.workflows.Retry(r.Context(), tenantID, id)
	writeWorkflow(w, requestID, http.StatusOK, state, err)
}
