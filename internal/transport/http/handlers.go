package transporthttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bursar/internal/audit"
	"bursar/internal/ledger"
	"bursar/internal/workflow"
	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
	"bursar/pkg/requestcontext"
)

// Handler holds the REST endpoints' collaborators.
type Handler struct {
	coordinator *workflow.Coordinator
	auditTrail  audit.Store
	logger      *slog.Logger
}

func NewHandler(coordinator *workflow.Coordinator, auditTrail audit.Store, logger *slog.Logger) *Handler {
	return &Handler{coordinator: coordinator, auditTrail: auditTrail, logger: logger}
}

func (h *Handler) submitExpenditure(w http.ResponseWriter, r *http.Request) {
	var req submitExpenditureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.coordinator.SubmitExpenditure(r.Context(), requestcontext.Actor(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultResponse(res))
}

func (h *Handler) expenditureAction(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, workflow.EntityExpenditure)
}

func (h *Handler) proposalAction(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, workflow.EntityProposal)
}

func (h *Handler) applyAction(w http.ResponseWriter, r *http.Request, entity workflow.EntityType) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	payload, err := req.toPayload()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.coordinator.ApplyTransition(
		r.Context(),
		requestcontext.Actor(r.Context()),
		entity,
		chi.URLParam(r, "id"),
		machine.Action(chi.URLParam(r, "action")),
		payload,
	)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(res))
}

func (h *Handler) getExpenditure(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseExpenditureID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	exp, err := h.coordinator.GetExpenditure(r.Context(), requestcontext.Actor(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenditureResponse(exp))
}

func (h *Handler) listExpenditures(w http.ResponseWriter, r *http.Request) {
	dept, fy, err := listScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.coordinator.ListExpenditures(r.Context(), requestcontext.Actor(r.Context()), dept, fy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	responses := make([]expenditureResponse, 0, len(out))
	for i := range out {
		responses = append(responses, toExpenditureResponse(&out[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) createProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.coordinator.CreateProposal(r.Context(), requestcontext.Actor(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultResponse(res))
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	prop, err := h.coordinator.GetProposal(r.Context(), requestcontext.Actor(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalResponse(prop))
}

func (h *Handler) listProposals(w http.ResponseWriter, r *http.Request) {
	dept, fy, err := listScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.coordinator.ListProposals(r.Context(), requestcontext.Actor(r.Context()), dept, fy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	responses := make([]proposalResponse, 0, len(out))
	for i := range out {
		responses = append(responses, toProposalResponse(&out[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) markProposalRead(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.coordinator.MarkProposalRead(r.Context(), requestcontext.Actor(r.Context()), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAllocations(w http.ResponseWriter, r *http.Request) {
	dept, fy, err := listScope(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := requestcontext.Actor(r.Context())

	if head := r.URL.Query().Get("budgetHead"); head != "" {
		alloc, err := h.coordinator.FindAllocation(r.Context(), actor, ledger.Key{
			Department:    dept,
			BudgetHead:    domain.BudgetHead(head),
			FinancialYear: fy,
		})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, []allocationResponse{toAllocationResponse(*alloc)})
		return
	}

	out, err := h.coordinator.ListAllocations(r.Context(), actor, dept, fy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	responses := make([]allocationResponse, 0, len(out))
	for _, a := range out {
		responses = append(responses, toAllocationResponse(a))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) auditTrailByEntity(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Actor(r.Context())
	if actor.Role != domain.RoleAdmin {
		writeError(w, h.logger, dErrors.New(dErrors.CodeForbidden, "audit trail is admin only"))
		return
	}
	entity, err := workflow.ParseEntityType(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	events, err := h.auditTrail.ListByEntity(r.Context(), string(entity), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, dErrors.Wrap(err, dErrors.CodeInternal, "load audit trail"))
		return
	}
	writeJSON(w, http.StatusOK, toAuditEventResponses(events))
}

// listScope extracts the department and financial year filters shared by the
// list endpoints. department is optional for privileged roles; the
// coordinator pins department-role actors to their own department regardless.
func listScope(r *http.Request) (domain.DepartmentID, domain.FinancialYear, error) {
	fy, err := domain.ParseFinancialYear(r.URL.Query().Get("financialYear"))
	if err != nil {
		return domain.DepartmentID{}, "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid financialYear")
	}
	var dept domain.DepartmentID
	if raw := r.URL.Query().Get("department"); raw != "" {
		if dept, err = domain.ParseDepartmentID(raw); err != nil {
			return domain.DepartmentID{}, "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid department")
		}
	}
	return dept, fy, nil
}
