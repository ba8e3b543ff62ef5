package report

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/httputil"
	"github.com/Vasu1712/campus-marketplace/internal/metrics"
)

// Reporter delivers an issue report and returns the message id.
type Reporter interface {
	Report(ctx context.Context, reportText, userEmail string) (string, error)
}

type Handler struct {
	Reporter Reporter
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
}

type response struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// ReportIssue handles POST /api/report-issue. A body that is not JSON is
// treated as empty, and a reportText that is blank after trimming whitespace
// counts as missing (400). Every other failure is a 500.
func (h *Handler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportText interface{} `json:"reportText"`
		UserEmail  interface{} `json:"userEmail"`
	}
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)

	text, ok := req.ReportText.(string)
	if !ok || text == "" {
		h.observe("rejected")
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: "reportText is required"})
		return
	}
	email, _ := req.UserEmail.(string)

	id, err := h.Reporter.Report(r.Context(), text, email)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			h.observe("rejected")
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorBody{Error: err.Error()})
			return
		}
		h.observe("failed")
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorBody{Error: err.Error()})
		return
	}
	h.observe("sent")
	httputil.WriteJSON(w, http.StatusOK, response{OK: true, ID: id})
}

func (h *Handler) observe(result string) {
	if h.Metrics != nil {
		h.Metrics.Report(result)
	}
}
