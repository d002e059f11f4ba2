package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/address"
	"github.com/sells-group/prospect-cli/internal/importer"
	"github.com/sells-group/prospect-cli/internal/model"
)

// manualSource tags leads entered through the API.
const manualSource = "api"

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.LeadFilter{SellerID: q.Get("seller_id")}

	var err error
	if v := q.Get("unassigned"); v != "" {
		if filter.Unassigned, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, model.NewValidation("list leads", eris.Errorf("unassigned: %q is not a boolean", v)))
			return
		}
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, r, model.NewValidation("list leads", eris.Wrap(err, "limit")))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, r, model.NewValidation("list leads", eris.Wrap(err, "offset")))
		return
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%q is not a non-negative integer", v)
	}
	return n, nil
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// createLeadRequest is the body of POST /leads.
type createLeadRequest struct {
	Name           string   `json:"name" validate:"required,max=200"`
	Category       string   `json:"category" validate:"max=100"`
	Street         string   `json:"street"`
	Neighborhood   string   `json:"neighborhood"`
	City           string   `json:"city" validate:"required"`
	State          string   `json:"state"`
	PostalCode     string   `json:"postal_code"`
	Phone          string   `json:"phone"`
	Website        string   `json:"website"`
	Rating         float64  `json:"rating" validate:"gte=0,lte=5"`
	Reviews        int      `json:"reviews" validate:"gte=0"`
	SalesPotential string   `json:"sales_potential"`
	Comments       []string `json:"comments" validate:"max=50"`
}

// record normalizes the request the same way spreadsheet rows are.
func (req createLeadRequest) record() (address.Record, error) {
	rec := address.Record{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Rating:   req.Rating,
		Reviews:  req.Reviews,
		Address: model.Address{
			Street:       strings.TrimSpace(req.Street),
			Neighborhood: strings.TrimSpace(req.Neighborhood),
			City:         strings.TrimSpace(req.City),
			State:        address.NormalizeState(req.State),
		},
		PostalCodeRaw: strings.TrimSpace(req.PostalCode),
		Phone:         address.NormalizePhone(req.Phone, "BR"),
		Website:       strings.TrimSpace(req.Website),
		Status:        address.StatusFromPotential(req.SalesPotential),
	}
	if rec.PostalCodeRaw != "" {
		cep, err := model.PadPostalCode(rec.PostalCodeRaw)
		if err != nil {
			return rec, err
		}
		rec.Address.PostalCode = cep
	}
	return rec, nil
}

func uniqueComments(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, c := range in {
		c = strings.Join(strings.Fields(c), " ")
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, model.NewValidation("create lead", err))
		return
	}
	rec, err := req.record()
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.importer.ImportRecord(r.Context(), rec, uniqueComments(req.Comments), manualSource)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) deleteLead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type addCommentResponse struct {
	Comment  *model.Comment `json:"comment"`
	Priority model.Priority `json:"priority"`
}

// addComment appends a comment and promotes the lead if the new text
// carries a complaint keyword.
func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req addCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, model.NewValidation("add comment", err))
		return
	}

	c, err := s.store.AddComment(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lead, err := s.store.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.scorer.Prioritize(lead) {
		if err := s.store.SetLeadPriority(r.Context(), id, lead.Priority); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, addCommentResponse{Comment: c, Priority: lead.Priority})
}

func (s *Server) listSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := s.store.ListSellers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sellers == nil {
		sellers = []model.Seller{}
	}
	writeJSON(w, http.StatusOK, sellers)
}

var _ Importer = (*importer.Pipeline)(nil)
