package httptransport

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"transcription-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type submitResp struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit godoc
// @Summary Submit a media file for transcription
// @Description Stages the upload, records the job as queued and hands it to the background worker.
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "media file"
// @Param model formData string false "model name (default tiny)"
// @Param format formData string false "output format: txt|srt|vtt|json (default txt)"
// @Param device formData string false "cpu or cuda (default cpu)"
// @Param language formData string false "language code or auto (default auto)"
// @Param task formData string false "transcribe or translate (default transcribe)"
// @Success 200 {object} submitResp
// @Failure 400 {object} apiError
// @Router /transcribe [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	req := service.SubmitRequest{
		Filename: header.Filename,
		File:     file,
		Model:    formOr(r, "model", "tiny"),
		Format:   formOr(r, "format", "txt"),
		Device:   formOr(r, "device", "cpu"),
		Language: formOr(r, "language", "auto"),
		Task:     formOr(r, "task", "transcribe"),
	}

	id, err := h.jobSvc.Submit(req)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, submitResp{
		ID:      id.String(),
		Status:  "queued",
		Message: "file accepted for processing",
	})
}

// Status godoc
// @Summary Get job status
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /status/{id} [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobSvc.Get(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// List godoc
// @Summary List all jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} entity.Job
// @Router /jobs [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobSvc.List())
}

// Download godoc
// @Summary Download the result of a finished job
// @Tags jobs
// @Produce octet-stream
// @Param id path string true "job id (uuid)"
// @Success 200 {file} binary
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /download/{id} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	path, name, err := h.jobSvc.Download(id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// Resubmit godoc
// @Summary Requeue an errored job with a fresh upload
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "job id (uuid)"
// @Param file formData file true "media file"
// @Success 200 {object} submitResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /resubmit/{id} [post]
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	var (
		upload   io.Reader
		filename string
	)
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		upload = file
		filename = header.Filename
	}

	if err := h.jobSvc.Resubmit(id, filename, upload); err != nil {
		writeServiceErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResp{
		ID:      id.String(),
		Status:  "queued",
		Message: "job requeued",
	})
}

// Health godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "transcription service is running",
	})
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	default:
		writeErr(w, http.StatusBadRequest, err.Error())
	}
}

func formOr(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}
