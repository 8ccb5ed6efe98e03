package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/viant/approvo/internal/yml"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/approval"
	"github.com/viant/approvo/service/definition"
)

// maxBodySize bounds request payloads.
const maxBodySize = 4 << 20

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

func isYAML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "yaml")
}

// decode reads a JSON (or YAML when allowYAML and the content type says so) body into target.
func decode(w http.ResponseWriter, r *http.Request, target interface{}, allowYAML bool) bool {
	data, err := readBody(r)
	if err != nil {
		badRequest(w, "failed to read body: "+err.Error())
		return false
	}
	if len(data) == 0 {
		return true
	}
	if allowYAML && isYAML(r) {
		err = yml.Unmarshal(data, target)
	} else {
		err = json.Unmarshal(data, target)
	}
	if err != nil {
		badRequest(w, "invalid body: "+err.Error())
		return false
	}
	return true
}

func intVar(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		badRequest(w, "invalid "+name+": "+mux.Vars(r)[name])
		return 0, false
	}
	return value, true
}

type actorRequest struct {
	By string `json:"by"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var def *model.Definition
	if isYAML(r) {
		data, err := readBody(r)
		if err != nil {
			badRequest(w, "failed to read body: "+err.Error())
			return
		}
		if def, err = definition.DecodeYAML(data); err != nil {
			badRequest(w, "invalid definition: "+err.Error())
			return
		}
	} else {
		def = &model.Definition{}
		if !decode(w, r, def, false) {
			return
		}
	}
	ret, err := h.engine.CreateDraft(r.Context(), def)
	writeResult(w, http.StatusCreated, ret, err)
}

func (h *Handler) getDefinition(w http.ResponseWriter, r *http.Request) {
	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		var err error
		if version, err = strconv.Atoi(raw); err != nil {
			badRequest(w, "invalid version: "+raw)
			return
		}
	}
	ret, err := h.engine.Definition(r.Context(), mux.Vars(r)["id"], version)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	version, ok := intVar(w, r, "version")
	if !ok {
		return
	}
	ret, err := h.engine.Publish(r.Context(), mux.Vars(r)["id"], version)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.Unpublish(r.Context(), mux.Vars(r)["id"])
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	request := &approval.SubmitRequest{}
	if !decode(w, r, request, false) {
		return
	}
	ret, err := h.engine.Submit(r.Context(), request)
	writeResult(w, http.StatusCreated, ret, err)
}

func (h *Handler) getInstance(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.Instance(r.Context(), mux.Vars(r)["id"])
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	step, ok := intVar(w, r, "step")
	if !ok {
		return
	}
	request := &approval.DecideRequest{}
	if !decode(w, r, request, false) {
		return
	}
	request.InstanceID = mux.Vars(r)["id"]
	request.StepIndex = step
	ret, err := h.engine.Decide(r.Context(), request)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	step, ok := intVar(w, r, "step")
	if !ok {
		return
	}
	request := &struct {
		Approvers []string `json:"approvers"`
	}{}
	if !decode(w, r, request, false) {
		return
	}
	ret, err := h.engine.Assign(r.Context(), mux.Vars(r)["id"], step, request.Approvers)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	request := &actorRequest{}
	if !decode(w, r, request, false) {
		return
	}
	ret, err := h.engine.Cancel(r.Context(), mux.Vars(r)["id"], request.By)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.Retry(r.Context(), mux.Vars(r)["id"])
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.ListPending(r.Context(), mux.Vars(r)["approverId"])
	if ret == nil && err == nil {
		ret = []*instance.Instance{}
	}
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) registerTemplate(w http.ResponseWriter, r *http.Request) {
	template := &pipeline.Template{}
	if !decode(w, r, template, true) {
		return
	}
	ret, err := h.engine.RegisterTemplate(r.Context(), template)
	writeResult(w, http.StatusCreated, ret, err)
}

func (h *Handler) startPipeline(w http.ResponseWriter, r *http.Request) {
	request := &struct {
		TemplateID string `json:"templateId"`
		ID         string `json:"id"`
	}{}
	if !decode(w, r, request, false) {
		return
	}
	ret, err := h.engine.StartPipeline(r.Context(), request.TemplateID, request.ID)
	writeResult(w, http.StatusCreated, ret, err)
}

func (h *Handler) getPipeline(w http.ResponseWriter, r *http.Request) {
	ret, err := h.engine.Pipeline(r.Context(), mux.Vars(r)["id"])
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	request := &actorRequest{}
	if !decode(w, r, request, false) {
		return
	}
	vars := mux.Vars(r)
	ret, err := h.engine.CompleteTask(r.Context(), vars["id"], vars["code"], request.By)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) selectOutcome(w http.ResponseWriter, r *http.Request) {
	request := &approval.OutcomeRequest{}
	if !decode(w, r, request, false) {
		return
	}
	vars := mux.Vars(r)
	request.PipelineID, request.TaskCode = vars["id"], vars["code"]
	ret, err := h.engine.SelectOutcome(r.Context(), request)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) reopenTask(w http.ResponseWriter, r *http.Request) {
	request := &actorRequest{}
	if !decode(w, r, request, false) {
		return
	}
	vars := mux.Vars(r)
	ret, err := h.engine.ReopenTask(r.Context(), vars["id"], vars["code"], request.By)
	writeResult(w, http.StatusOK, ret, err)
}

func (h *Handler) attachWorkProduct(w http.ResponseWriter, r *http.Request) {
	request := &struct {
		ID string `json:"id"`
	}{}
	if !decode(w, r, request, false) {
		return
	}
	vars := mux.Vars(r)
	ret, err := h.engine.AttachWorkProduct(r.Context(), vars["id"], vars["code"], request.ID)
	writeResult(w, http.StatusCreated, ret, err)
}
