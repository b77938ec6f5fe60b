package handlers

import (
	"net/http"

	"contentfactory/internal/domain"
	"contentfactory/internal/pipeline"
)

type stepUpdateRequest struct {
	SessionID  flexInt            `json:"sessionId"`
	StepName   string             `json:"stepName"`
	StepOrder  flexInt            `json:"stepOrder"`
	Status     *string            `json:"status"`
	InputData  domain.Document    `json:"inputData"`
	OutputData domain.Document    `json:"outputData"`
	AIModel    *string            `json:"aiModel"`
	TokensUsed flexInt            `json:"tokensUsed"`
	DurationMs flexInt            `json:"durationMs"`
}

type sessionUpdateRequest struct {
	SessionID    flexInt `json:"sessionId"`
	Status       string  `json:"status"`
	CurrentStep  *string `json:"currentStep"`
	ErrorMessage *string `json:"errorMessage"`
	ErrorStep    *string `json:"errorStep"`
	ResumeURL    *string `json:"resumeUrl"`
	ResumeURLAlt *string `json:"resume_url"`
}

type errorRequest struct {
	SessionID    flexInt `json:"sessionId"`
	WorkflowName string  `json:"workflowName"`
	NodeName     *string `json:"nodeName"`
	ErrorMessage string  `json:"errorMessage"`
	ErrorStack   *string `json:"errorStack"`
}

type logErrorRequest struct {
	SessionID    flexInt `json:"session_id"`
	WorkflowName string  `json:"workflow_name"`
	NodeName     *string `json:"node_name"`
	ErrorMessage string  `json:"error_message"`
}

type costRequest struct {
	SessionID        flexInt  `json:"sessionId"`
	StepName         *string  `json:"stepName"`
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	PromptTokens     flexInt  `json:"promptTokens"`
	CompletionTokens flexInt  `json:"completionTokens"`
	TotalTokens      flexInt  `json:"totalTokens"`
	CostUSD          *float64 `json:"costUsd"`
	DurationMs       flexInt  `json:"durationMs"`
}

type mediaRequest struct {
	SessionID flexInt         `json:"sessionId"`
	FileKey   string          `json:"fileKey"`
	FileName  string          `json:"fileName"`
	FileType  string          `json:"fileType"`
	MimeType  string          `json:"mimeType"`
	FileSize  flexInt         `json:"fileSize"`
	Source    string          `json:"source"`
	Metadata  domain.Document `json:"metadata"`
}

type contentReadyRequest struct {
	IdeaID        flexInt `json:"idea_id"`
	VoiceScriptID flexInt `json:"voice_script_id"`
	VideoPromptID flexInt `json:"video_prompt_id"`
	Status        string  `json:"status"`
}

type videoReadyRequest struct {
	SessionID     flexInt `json:"session_id"`
	FinalVideoURL string  `json:"final_video_url"`
	Status        string  `json:"status"`
}

type cardReadyRequest struct {
	CardID      flexInt `json:"card_id"`
	ProductName string  `json:"product_name"`
	Status      string  `json:"status"`
	ImageURL    string  `json:"image_url"`
}

func (a *App) CallbackStepUpdate(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req stepUpdateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	step, err := a.Ingress.StepUpdate(r.Context(), domain.StepUpdate{
		SessionID:  req.SessionID.Value,
		StepName:   req.StepName,
		StepOrder:  req.StepOrder.IntPtr(),
		Status:     optStepStatus(req.Status),
		InputData:  req.InputData,
		OutputData: req.OutputData,
		AIModel:    optString(req.AIModel),
		TokensUsed: req.TokensUsed.IntPtr(),
		DurationMs: req.DurationMs.IntPtr(),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": step})
}

func (a *App) CallbackSessionUpdate(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req sessionUpdateRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resume := req.ResumeURL
	if resume == nil {
		resume = req.ResumeURLAlt
	}
	session, applied, err := a.Ingress.SessionUpdate(r.Context(), domain.SessionUpdate{
		SessionID:    req.SessionID.Value,
		Status:       domain.SessionStatus(req.Status),
		CurrentStep:  optString(req.CurrentStep),
		ErrorMessage: optString(req.ErrorMessage),
		ErrorStep:    optString(req.ErrorStep),
		ResumeURL:    optString(resume),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "applied": applied, "data": session})
}

func (a *App) CallbackError(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req errorRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	record, err := a.Ingress.ReportError(r.Context(), domain.WorkflowError{
		SessionID:    req.SessionID.Int64Ptr(),
		WorkflowName: req.WorkflowName,
		NodeName:     optString(req.NodeName),
		ErrorMessage: req.ErrorMessage,
		ErrorStack:   optString(req.ErrorStack),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": map[string]any{"id": record.ID}})
}

func (a *App) CallbackLogError(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req logErrorRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	record, err := a.Ingress.LogError(r.Context(), domain.WorkflowError{
		SessionID:    req.SessionID.Int64Ptr(),
		WorkflowName: req.WorkflowName,
		NodeName:     optString(req.NodeName),
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": map[string]any{"id": record.ID}})
}

func (a *App) CallbackCost(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req costRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	entry, err := a.Ingress.ReportCost(r.Context(), domain.CostReport{
		SessionID:        req.SessionID.Int64Ptr(),
		StepName:         optString(req.StepName),
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens.IntPtr(),
		CompletionTokens: req.CompletionTokens.IntPtr(),
		TotalTokens:      req.TotalTokens.IntPtr(),
		CostUSD:          req.CostUSD,
		DurationMs:       req.DurationMs.IntPtr(),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "data": entry})
}

func (a *App) CallbackMedia(w http.ResponseWriter, r *http.Request) {
	if !a.storeReady(w, r) {
		return
	}
	var req mediaRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	file, url, err := a.Ingress.RegisterMedia(r.Context(), domain.MediaFile{
		SessionID: req.SessionID.Int64Ptr(),
		FileKey:   req.FileKey,
		FileName:  req.FileName,
		FileType:  req.FileType,
		MimeType:  req.MimeType,
		FileSize:  req.FileSize.Value,
		Source:    req.Source,
		Metadata:  req.Metadata,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	data := map[string]any{"id": file.ID}
	if url != "" {
		data["url"] = url
	}
	a.json(w, http.StatusCreated, map[string]any{"ok": true, "data": data})
}

func (a *App) CallbackContentReady(w http.ResponseWriter, r *http.Request) {
	var req contentReadyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Ingress.Notify(pipeline.EventContentReady, nil, map[string]any{
		"idea_id":         req.IdeaID,
		"voice_script_id": req.VoiceScriptID,
		"video_prompt_id": req.VideoPromptID,
		"status":          req.Status,
	})
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) CallbackVideoReady(w http.ResponseWriter, r *http.Request) {
	var req videoReadyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Ingress.Notify(pipeline.EventVideoReady, req.SessionID.Int64Ptr(), map[string]any{
		"session_id":      req.SessionID,
		"final_video_url": req.FinalVideoURL,
		"status":          req.Status,
	})
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) CallbackCardReady(w http.ResponseWriter, r *http.Request) {
	var req cardReadyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.Ingress.Notify(pipeline.EventCardReady, nil, map[string]any{
		"card_id":      req.CardID,
		"product_name": req.ProductName,
		"status":       req.Status,
		"image_url":    req.ImageURL,
	})
	a.json(w, http.StatusOK, map[string]any{"ok": true})
}
