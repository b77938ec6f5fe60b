package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"contentfactory/internal/domain"
	"contentfactory/internal/middleware"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/workflow"
)

type createSessionRequest struct {
	ProductName        string          `json:"productName"`
	Marketplace        string          `json:"marketplace"`
	ProductArticles    json.RawMessage `json:"productArticles"`
	ProductDescription string          `json:"productDescription"`
	Source             string          `json:"source"`
	IdeaID             flexInt         `json:"ideaId"`
	VoiceScriptID      flexInt         `json:"voiceScriptId"`
	VideoPromptID      flexInt         `json:"videoPromptId"`
}

type resumeRequest struct {
	Action    string  `json:"action"`
	IdeaIndex flexInt `json:"ideaIndex"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type publishRequest struct {
	Channels        []string `json:"channels"`
	Caption         string   `json:"caption"`
	GenerateCaption *bool    `json:"generateCaption"`
}

func (a *App) SessionsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SessionFilter{
		Status:      q.Get("status"),
		Marketplace: q.Get("marketplace"),
		Source:      q.Get("source"),
		Search:      q.Get("search"),
		Sort:        q.Get("sort"),
		Order:       q.Get("order"),
		Limit:       queryInt(r, "limit"),
		Offset:      queryInt(r, "offset"),
	}
	sessions, total, err := a.Sessions.List(r.Context(), filter)
	if errors.Is(err, domain.ErrStorageUnavailable) {
		if a.Store != nil {
			a.Store.MarkUnavailable()
		}
		a.json(w, http.StatusServiceUnavailable, map[string]any{
			"ok":       false,
			"degraded": true,
			"error":    "storage_unavailable",
			"message":  message(middleware.LocaleFromContext(r.Context()), "storage_unavailable"),
			"data":     []domain.Session{},
			"total":    0,
		})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f := filter.Normalize()
	a.json(w, http.StatusOK, map[string]any{
		"ok":     true,
		"data":   sessions,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (a *App) SessionsGet(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.storeReady(w, r) {
		return
	}
	detail, err := a.Sessions.Detail(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": detail})
}

func (a *App) SessionsCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	articles, err := articlesDocument(req.ProductArticles)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.storeReady(w, r) {
		return
	}
	session, result, err := a.Sessions.Create(r.Context(), domain.NewSession{
		UserLogin:          middleware.LoginFromContext(r.Context()),
		Source:             req.Source,
		ProductName:        req.ProductName,
		ProductArticles:    articles,
		ProductDescription: req.ProductDescription,
		Marketplace:        req.Marketplace,
		IdeaID:             req.IdeaID.Int64Ptr(),
		VoiceScriptID:      req.VoiceScriptID.Int64Ptr(),
		VideoPromptID:      req.VideoPromptID.Int64Ptr(),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"sessionId": session.ID,
		"data":      session,
		"workflow":  workflowStatus(result),
	})
}

func (a *App) SessionsResume(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req resumeRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.storeReady(w, r) {
		return
	}
	decision := workflow.Decision{Action: strings.TrimSpace(req.Action), IdeaIndex: req.IdeaIndex.IntPtr()}
	result, err := a.Gate.Submit(r.Context(), id, decision)
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			a.json(w, http.StatusBadGateway, map[string]any{
				"ok":       false,
				"error":    "upstream",
				"message":  message(middleware.LocaleFromContext(r.Context()), "upstream"),
				"workflow": workflowStatus(result),
			})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "action": decision.Action, "workflow": workflowStatus(result)})
}

func (a *App) SessionsApprove(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.storeReady(w, r) {
		return
	}
	session, err := a.Sessions.Approve(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": session})
}

func (a *App) SessionsReject(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := a.decode(w, r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if !a.storeReady(w, r) {
		return
	}
	session, err := a.Sessions.Reject(r.Context(), id, req.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": session})
}

func (a *App) SessionsPublish(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req publishRequest
	if r.ContentLength != 0 {
		if err := a.decode(w, r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if !a.storeReady(w, r) {
		return
	}
	result, err := a.Sessions.Publish(r.Context(), id, pipeline.PublishOptions{
		Channels:        req.Channels,
		Caption:         req.Caption,
		GenerateCaption: req.GenerateCaption,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var data any = map[string]any{}
	if len(result.Body) > 0 {
		data = result.Body
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func (a *App) SessionsCancel(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !a.storeReady(w, r) {
		return
	}
	session, err := a.Sessions.Cancel(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": session})
}

func (a *App) ErrorsList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ErrorFilter{
		Workflow: r.URL.Query().Get("workflow"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}
	records, total, err := a.Sessions.Errors(r.Context(), filter)
	if errors.Is(err, domain.ErrStorageUnavailable) {
		if a.Store != nil {
			a.Store.MarkUnavailable()
		}
		a.json(w, http.StatusServiceUnavailable, map[string]any{
			"ok":       false,
			"degraded": true,
			"error":    "storage_unavailable",
			"message":  message(middleware.LocaleFromContext(r.Context()), "storage_unavailable"),
			"data":     []domain.WorkflowError{},
			"total":    0,
		})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": records, "total": total})
}

func articlesDocument(raw json.RawMessage) (domain.Document, error) {
	var doc domain.Document
	if len(raw) > 0 {
		if err := doc.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
	}
	if !doc.Present() {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: productArticles must be an array", domain.ErrValidation)
	}
	return doc, nil
}

func workflowStatus(res workflow.Result) map[string]any {
	out := map[string]any{"outcome": res.Outcome}
	if res.StatusCode != 0 {
		out["statusCode"] = res.StatusCode
	}
	if !res.OK() && res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return out
}
